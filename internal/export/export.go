// Package export writes discovery results to per-topic and combined
// artifacts in CSV, JSON, or XLSX. Artifact failures are isolated: one
// unwritable file never blocks the rest.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// profileColumns defines the ordered output columns shared by the tabular
// formats (CSV and XLSX).
var profileColumns = []string{
	"topic",
	"username",
	"profile_url",
	"followers",
	"likes",
	"following",
	"friends",
	"video_count",
	"bio",
	"email",
	"has_email",
}

// unsafeFilenameChars matches everything a topic may not contribute to a
// file name.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Exporter writes a ResultSet to disk in a single format.
type Exporter struct {
	Dir    string
	Format string // csv, json, or xlsx
}

// New returns an Exporter writing format files under dir.
func New(dir, format string) *Exporter {
	return &Exporter{Dir: dir, Format: format}
}

// Report describes what one export pass produced. Errors is keyed by the
// artifact (or directory) that failed.
type Report struct {
	Artifacts []string
	Errors    map[string]string
}

// Export writes one artifact per non-empty topic plus a combined
// all_topics artifact. Topics with no profiles produce no file. A failed
// artifact is recorded in the report and the remaining artifacts are still
// written.
func (e *Exporter) Export(rs *model.ResultSet) *Report {
	log := zap.L().With(zap.String("dir", e.Dir), zap.String("format", e.Format))
	report := &Report{Errors: make(map[string]string)}

	if rs == nil || rs.Len() == 0 {
		log.Info("export: no profiles to write")
		return report
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		report.Errors[e.Dir] = eris.Wrap(err, "export: create output dir").Error()
		return report
	}

	for _, topic := range rs.Topics() {
		profiles := rs.Get(topic)
		if len(profiles) == 0 {
			log.Debug("export: topic has no profiles, skipping file", zap.String("topic", topic))
			continue
		}
		name := fmt.Sprintf("topic_%s.%s", sanitizeTopic(topic), e.Format)
		e.writeArtifact(filepath.Join(e.Dir, name), profiles, report)
	}

	if combined := rs.Flatten(); len(combined) > 0 {
		e.writeArtifact(filepath.Join(e.Dir, "all_topics."+e.Format), combined, report)
	}

	log.Info("export: finished",
		zap.Int("artifacts", len(report.Artifacts)),
		zap.Int("failures", len(report.Errors)))
	return report
}

func (e *Exporter) writeArtifact(path string, profiles []model.Profile, report *Report) {
	var err error
	switch e.Format {
	case "csv":
		err = writeCSV(path, profiles)
	case "json":
		err = writeJSON(path, profiles)
	case "xlsx":
		err = writeXLSX(path, profiles)
	default:
		err = eris.Errorf("export: unknown format %q", e.Format)
	}
	if err != nil {
		zap.L().Error("export: artifact failed", zap.String("path", path), zap.Error(err))
		report.Errors[filepath.Base(path)] = err.Error()
		return
	}
	report.Artifacts = append(report.Artifacts, path)
}

// profileRow maps a profile onto profileColumns. Counts the provider never
// sent render as empty cells.
func profileRow(p model.Profile) []string {
	return []string{
		p.Topic,
		p.Username,
		p.ProfileURL,
		countCell(p.Followers),
		countCell(p.Likes),
		countCell(p.Following),
		countCell(p.Friends),
		countCell(p.VideoCount),
		p.Bio,
		emailCell(p.Email),
		strconv.FormatBool(p.HasEmail),
	}
}

func countCell(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func emailCell(email *string) string {
	if email == nil {
		return ""
	}
	return *email
}

// sanitizeTopic makes a topic safe to embed in a file name.
func sanitizeTopic(topic string) string {
	return unsafeFilenameChars.ReplaceAllString(topic, "_")
}
