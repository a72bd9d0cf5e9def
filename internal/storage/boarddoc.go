package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/agent-factory/pkg/models"
	"gopkg.in/yaml.v3"
)

// BoardTitle is the heading of the rendered board body.
const BoardTitle = "Agent Factory Dashboard"

// boardFrontmatter is the authoritative structured part of Dashboard.md.
type boardFrontmatter struct {
	Counters    models.Counters `yaml:"counters"`
	LastUpdated string          `yaml:"last_updated,omitempty"`
	Tasks       []models.Task   `yaml:"tasks"`
}

// ParseBoard decodes a board document. The YAML frontmatter is the source
// of truth; the markdown body is regenerated on every write and ignored.
func ParseBoard(content string) (*models.Board, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return nil, fmt.Errorf("%w: no frontmatter delimiter found", ErrMalformedBoard)
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		if strings.HasSuffix(rest, "\n---") {
			idx = len(rest) - 4
		} else {
			return nil, fmt.Errorf("%w: no closing frontmatter delimiter found", ErrMalformedBoard)
		}
	}

	var fm boardFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling frontmatter: %v", ErrMalformedBoard, err)
	}

	for i, t := range fm.Tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: row %d has no name", ErrMalformedBoard, i+1)
		}
		if !t.Status.Valid() {
			return nil, fmt.Errorf("%w: row %q has unknown status %q", ErrMalformedBoard, t.Name, t.Status)
		}
	}

	return &models.Board{
		Counters:    fm.Counters,
		LastUpdated: fm.LastUpdated,
		Tasks:       fm.Tasks,
	}, nil
}

// RenderBoard produces the full board document: frontmatter followed by a
// human-readable markdown view of the same data.
func RenderBoard(b *models.Board) (string, error) {
	fm := boardFrontmatter{
		Counters:    b.Counters,
		LastUpdated: b.LastUpdated,
		Tasks:       b.Tasks,
	}
	if fm.Tasks == nil {
		fm.Tasks = []models.Task{}
	}

	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fmBytes)
	sb.WriteString("---\n\n")

	sb.WriteString("# " + BoardTitle + "\n\n")
	sb.WriteString("| Total Tasks | Completed | Pending | Errors |\n")
	sb.WriteString("|:---:|:---:|:---:|:---:|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n\n", b.Counters.Total, b.Counters.Completed, b.Counters.Pending, b.Counters.Errors)

	sb.WriteString("## Tasks\n\n")
	if len(b.Tasks) == 0 {
		sb.WriteString("_No tasks yet._\n")
	} else {
		sb.WriteString("| S.No | Task | Status | Date | Time | File |\n")
		sb.WriteString("|---:|---|---|---|---|---|\n")
		for _, t := range b.Tasks {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s |\n",
				t.Seq, escapeCell(t.Name), statusBadge(t.Status), t.Date, t.Time, linkCell(t.Link))
		}
	}

	if b.LastUpdated != "" {
		sb.WriteString("\n---\n\n")
		fmt.Fprintf(&sb, "*Last Updated: %s*\n", b.LastUpdated)
	}

	return sb.String(), nil
}

func statusBadge(s models.TaskStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳ Pending"
	case models.StatusCompleted:
		return "✅ Completed"
	case models.StatusError:
		return "❌ Error"
	default:
		return string(s)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func linkCell(link string) string {
	if link == "" {
		return ""
	}
	return fmt.Sprintf("[Open](<%s>)", escapeCell(link))
}

// ReadBoardFile loads and parses the board at path without taking the lock.
func ReadBoardFile(path string) (*models.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board: %w", err)
	}
	return ParseBoard(string(data))
}

// WriteBoardFile renders b and replaces the file at path in one rename, so
// concurrent readers see either the old or the new document. It does not
// take the lock.
func WriteBoardFile(path string, b *models.Board) error {
	content, err := RenderBoard(b)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp board: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp board: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp board: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting board permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing board: %w", err)
	}
	return nil
}
