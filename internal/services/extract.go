package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

const sniffLength = 512

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// sniffContentType inspects the leading bytes of the file and returns the bare media type.
func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for sniffing: %w", err)
	}
	defer f.Close()

	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read for sniffing: %w", err)
	}

	detected := http.DetectContentType(buf[:n])
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected, nil
	}
	return mediaType, nil
}

// extractText returns the searchable text of a stored upload. Unsupported types yield "".
func extractText(path, contentType string) (string, error) {
	switch {
	case contentType == "application/pdf":
		return extractPDFText(path)
	case contentType == "text/html":
		return extractHTMLText(path)
	case strings.HasPrefix(contentType, "text/"):
		return readUTF8(path)
	default:
		return "", nil
	}
}

// extractHTMLText prefers the readability article body and falls back to the raw markup.
func extractHTMLText(path string) (string, error) {
	raw, err := readUTF8(path)
	if err != nil {
		return "", err
	}

	pageURL := &url.URL{Scheme: "file", Path: "/" + filepath.Base(path)}
	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil {
		return raw, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return raw, nil
	}
	return text, nil
}

func readUTF8(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}
