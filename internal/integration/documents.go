package integration

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// ProcessedLayout is the timestamp format written into response blocks.
const ProcessedLayout = "2006-01-02 15:04"

// docxBody is the main document part inside a .docx package.
const docxBody = "word/document.xml"

// wordNS is the WordprocessingML namespace. Elements from other
// namespaces, such as DrawingML a:p and a:t inside shapes, carry no body
// text.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DocumentStore reads task documents and appends generated responses to
// them in place. The format is chosen by file extension.
type DocumentStore interface {
	Read(path string) (string, error)
	AppendResponse(path string, resp models.Response) error
}

type documentStore struct{}

// NewDocumentStore creates a DocumentStore handling .md, .txt and .docx.
func NewDocumentStore() DocumentStore {
	return &documentStore{}
}

func isDocx(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".docx")
}

// Read returns the full text of the document. Paragraphs of a .docx are
// joined with newlines.
func (d *documentStore) Read(path string) (string, error) {
	if isDocx(path) {
		return readDocx(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

// AppendResponse adds the response block after the existing content,
// leaving everything before it untouched.
func (d *documentStore) AppendResponse(path string, resp models.Response) error {
	if isDocx(path) {
		return appendDocx(path, resp)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", filepath.Base(path), err)
	}
	if _, err := f.WriteString(TextResponseBlock(resp)); err != nil {
		f.Close()
		return fmt.Errorf("appending response to %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// TextResponseBlock renders the block appended to markdown and text files.
func TextResponseBlock(resp models.Response) string {
	var sb strings.Builder
	sb.WriteString("\n---\n\n")
	sb.WriteString("## AI Response\n\n")
	fmt.Fprintf(&sb, "**Processed:** %s\n\n", resp.Processed.Format(ProcessedLayout))
	sb.WriteString(resp.Body)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "**Task Type:** %s\n", resp.Label)
	sb.WriteString("**Status:** Completed\n")
	return sb.String()
}

func readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	body, err := readZipEntry(&zr.Reader, docxBody)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	paragraphs, err := docxParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in package", name)
}

// docxParagraphs extracts the text of every top-level w:p element in order.
// Runs are concatenated; w:tab and w:br inside a run become a tab and a
// newline. Text box content (w:txbxContent) nested in a paragraph is
// skipped.
func docxParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inRun      bool
		inText     bool
		textBoxes  int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordNS {
				continue
			}
			if el.Name.Local == "txbxContent" {
				textBoxes++
			}
			if textBoxes > 0 {
				continue
			}
			switch el.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if el.Name.Space != wordNS {
				continue
			}
			if el.Name.Local == "txbxContent" {
				textBoxes--
				continue
			}
			if textBoxes > 0 {
				continue
			}
			switch el.Name.Local {
			case "p":
				if inPara {
					paragraphs = append(paragraphs, current.String())
				}
				inPara = false
			case "r":
				inRun = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara && textBoxes == 0 {
				current.Write(el)
			}
		}
	}
	return paragraphs, nil
}

// docxResponseParagraphs lists the paragraphs appended to a .docx, with
// the heading flagged.
func docxResponseParagraphs(resp models.Response) []docxParagraph {
	paras := []docxParagraph{
		{text: strings.Repeat("_", 50)},
		{text: "AI Response", style: "Heading2"},
		{text: "Processed: " + resp.Processed.Format(ProcessedLayout)},
		{text: ""},
	}
	for _, line := range strings.Split(resp.Body, "\n") {
		if strings.TrimSpace(line) != "" {
			paras = append(paras, docxParagraph{text: line})
		}
	}
	paras = append(paras,
		docxParagraph{text: ""},
		docxParagraph{text: "Task Type: " + string(resp.Label)},
		docxParagraph{text: "Status: Completed"},
	)
	return paras
}

type docxParagraph struct {
	text  string
	style string
}

func (p docxParagraph) xml() string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	if p.style != "" {
		fmt.Fprintf(&sb, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, p.style)
	}
	if p.text != "" {
		sb.WriteString(`<w:r><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&sb, []byte(p.text))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// insertParagraphs places xmlFrag after the last block-level element of the
// body, ahead of the trailing section properties when present.
func insertParagraphs(body, xmlFrag string) (string, error) {
	end := strings.LastIndex(body, "</w:body>")
	if end < 0 {
		return "", fmt.Errorf("document body end not found")
	}
	at := end
	lastBlock := max(strings.LastIndex(body[:end], "</w:p>"), strings.LastIndex(body[:end], "</w:tbl>"))
	if sect := strings.LastIndex(body[:end], "<w:sectPr"); sect > lastBlock {
		at = sect
	}
	return body[:at] + xmlFrag + body[at:], nil
}

func appendDocx(path string, resp models.Response) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	body, err := readZipEntry(&zr.Reader, docxBody)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var frag strings.Builder
	for _, p := range docxResponseParagraphs(resp) {
		frag.WriteString(p.xml())
	}
	updated, err := insertParagraphs(string(body), frag.String())
	if err != nil {
		return fmt.Errorf("updating %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)
	for _, f := range zr.File {
		if f.Name != docxBody {
			if err := zw.Copy(f); err != nil {
				cleanup()
				return fmt.Errorf("copying %s: %w", f.Name, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			cleanup()
			return fmt.Errorf("writing %s: %w", docxBody, err)
		}
		if _, err := io.WriteString(w, updated); err != nil {
			cleanup()
			return fmt.Errorf("writing %s: %w", docxBody, err)
		}
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return fmt.Errorf("finishing document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp document: %w", err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting document permissions: %w", err)
	}
	zr.Close()
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
