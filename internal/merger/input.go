package merger

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Kind is the type of an uploaded file.
type Kind int

const (
	KindPDF Kind = iota + 1
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// File is one ordered input of a merge.
type File struct {
	Name   string
	Data   []byte
	Ranges string
	// Layout is nil when the file keeps its own page geometry.
	Layout *Layout
}

// DetectKind classifies a file by its extension.
func DetectKind(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".jpg", ".jpeg", ".png":
		return KindImage, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
}

// InputError is a problem with an uploaded file. Its message is shown to the
// user as the job error.
type InputError struct {
	File string
	Msg  string
	Err  error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return e.Err }

// CountPages opens data as a PDF and returns its page count. Encrypted
// documents are rejected.
func CountPages(name string, data []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = recoveredError(name, rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || hasEncryptTrailer(data) {
			return 0, encryptedError(name)
		}
		return 0, readError(name, err)
	}
	if !r.Trailer().Key("Encrypt").IsNull() {
		return 0, encryptedError(name)
	}
	return r.NumPage(), nil
}

// hasEncryptTrailer reports whether the trailer near the end of data names an
// encryption dictionary. It catches encrypted files the reader cannot open.
func hasEncryptTrailer(data []byte) bool {
	const tail = 2048
	if len(data) > tail {
		data = data[len(data)-tail:]
	}
	i := bytes.LastIndex(data, []byte("trailer"))
	return i >= 0 && bytes.Contains(data[i:], []byte("/Encrypt"))
}
