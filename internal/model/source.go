package model

import (
	"fmt"
	"strconv"
	"time"
)

type SourceStatus string

const (
	SourceUploading SourceStatus = "uploading"
	SourceSuccess   SourceStatus = "success"
	SourceError     SourceStatus = "error"
)

// Provenance records who last set a flag.
type Provenance string

const (
	FromClient Provenance = "client"
	FromServer Provenance = "server"
)

// Flag is a boolean that remembers whether the server has ever reported it.
// Server values always win; client values survive only while the server is silent.
type Flag struct {
	Value bool       `json:"value"`
	From  Provenance `json:"from"`
}

func ClientFlag(v bool) Flag { return Flag{Value: v, From: FromClient} }

func ServerFlag(v bool) Flag { return Flag{Value: v, From: FromServer} }

// Merge overlays a server report. A nil report keeps the local value.
func (f Flag) Merge(reported *bool) Flag {
	if reported == nil {
		return f
	}
	return ServerFlag(*reported)
}

type Source struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Origin     string       `json:"origin"`
	UploadDate string       `json:"upload_date"`
	SizeLabel  string       `json:"size_label"`
	Vectorized Flag         `json:"vectorized"`
	Analyzed   Flag         `json:"analyzed"`
	IsTemplate Flag         `json:"is_template"`
	Status     SourceStatus `json:"status"`
	Progress   *int         `json:"progress,omitempty"`
	// Error holds the failure message of an upload placeholder.
	Error string `json:"error,omitempty"`
}

func (s Source) Template() bool {
	return s.IsTemplate.Value
}

// SourceRecord is a source as the backend reports it. Nil flags mean the
// server did not include the field.
type SourceRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Origin     string `json:"origin,omitempty"`
	UploadDate string `json:"uploadDate,omitempty"`
	Size       string `json:"size,omitempty"`
	Vectorized *bool  `json:"vectorized,omitempty"`
	Analyzed   *bool  `json:"analyzed,omitempty"`
	IsTemplate *bool  `json:"isTemplate,omitempty"`
}

// Overlay applies a server record onto a local source.
func (s Source) Overlay(r SourceRecord) Source {
	out := s
	out.ID = r.ID
	if r.Name != "" {
		out.Name = r.Name
	}
	if r.Origin != "" {
		out.Origin = r.Origin
	}
	if r.UploadDate != "" {
		out.UploadDate = r.UploadDate
	}
	if r.Size != "" {
		out.SizeLabel = r.Size
		if n, err := strconv.ParseInt(r.Size, 10, 64); err == nil {
			out.SizeLabel = SizeLabel(n)
		}
	}
	out.Vectorized = s.Vectorized.Merge(r.Vectorized)
	out.Analyzed = s.Analyzed.Merge(r.Analyzed)
	out.IsTemplate = s.IsTemplate.Merge(r.IsTemplate)
	out.Status = SourceSuccess
	out.Progress = nil
	out.Error = ""
	return out
}

// SourceFromRecord builds a fresh local source from a server record.
func SourceFromRecord(r SourceRecord) Source {
	return Source{
		Vectorized: ClientFlag(false),
		Analyzed:   ClientFlag(false),
		IsTemplate: ClientFlag(false),
	}.Overlay(r)
}

// SourceSnapshot is the observable state of the source store.
type SourceSnapshot struct {
	Sources  []Source  `json:"sources"`
	Selected []string  `json:"selected"`
	Stale    bool      `json:"stale"`
	SyncedAt time.Time `json:"synced_at,omitempty"`
	// SyncError is the last poll failure; the list above is last-known-good.
	SyncError string `json:"sync_error,omitempty"`
}

// SizeLabel renders a byte count the way the task pane lists files.
func SizeLabel(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/1024/1024)
}
