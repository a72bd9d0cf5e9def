package models

import (
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TaskStatus represents the lifecycle state recorded for a task on the board.
type TaskStatus string

const (
	StatusPending   TaskStatus = "Pending"
	StatusCompleted TaskStatus = "Completed"
	StatusError     TaskStatus = "Error"
)

// Terminal reports whether no further transition is allowed out of s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether a row in state from may move to state to.
// Only Pending rows move, and only to a terminal state.
func CanTransition(from, to TaskStatus) bool {
	return from == StatusPending && to.Terminal()
}

// Stage identifies one of the three staging directories.
type Stage string

const (
	StageInbox       Stage = "Inbox"
	StageNeedsAction Stage = "Needs_Action"
	StageDone        Stage = "Done"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageInbox, StageNeedsAction, StageDone}

// SupportedExtensions are the document types accepted into the pipeline.
var SupportedExtensions = []string{".md", ".txt", ".docx"}

// IsSupported reports whether filename carries a supported extension,
// compared case-insensitively.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// TaskName derives the board display name from a file name: the stem
// without extension, NFC-normalized so rows written on one platform match
// file names read on another.
func TaskName(filename string) string {
	base := filepath.Base(filename)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Task is one row of the status board.
type Task struct {
	Seq    int        `yaml:"seq" json:"seq"`
	Name   string     `yaml:"name" json:"name"`
	Status TaskStatus `yaml:"status" json:"status"`
	Date   string     `yaml:"date" json:"date"`
	Time   string     `yaml:"time" json:"time"`
	Link   string     `yaml:"link" json:"link"`
}

// Classification is the intent label assigned to a document's content.
type Classification string

const (
	ClassQuestion    Classification = "Question"
	ClassAnalysis    Classification = "Analysis"
	ClassWriting     Classification = "Writing"
	ClassCode        Classification = "Code"
	ClassCalculation Classification = "Calculation"
	ClassGeneral     Classification = "General"
)

// Response is the generated answer appended to a processed document.
type Response struct {
	Processed time.Time
	Label     Classification
	Body      string
}
