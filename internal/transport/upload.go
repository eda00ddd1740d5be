// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package transport

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ProgressFunc receives byte-level transfer progress. total is the declared
// file size; sent never exceeds total.
type ProgressFunc func(sent, total int64)

// UploadVideo transfers one video file to /upload_video as a multipart form
// (one file per call, matching the server contract). onProgress, if non-nil,
// is invoked on every chunk written to the wire.
//
// The context bounds the whole transfer; the upload pipeline applies a
// per-file timeout through it.
func (c *Client) UploadVideo(ctx context.Context, fileName string, r io.Reader, size int64, onProgress ProgressFunc) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		src := &progressReader{r: r, total: size, report: onProgress}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(fmt.Errorf("copy file: %w", err))
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_video", pr)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	// Uploads run minutes, not seconds; bypass the client-wide timeout and
	// rely on the caller's context deadline.
	uploadClient := &http.Client{Transport: c.http.Transport}
	resp, err := uploadClient.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Message: "read upload response: " + err.Error(), StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorBody(resp.StatusCode, payload)
	}

	return nil
}

// progressReader reports cumulative bytes read from the wrapped reader.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	report ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.report != nil {
			p.report(p.sent, p.total)
		}
	}
	return n, err
}
