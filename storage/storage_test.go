package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestLocalUploadInfoDelete(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/uploads/", "cms-uploads")
	require.NoError(t, err)
	ctx := context.Background()

	f, err := l.Upload(ctx, bytes.NewReader(pngHeader), UploadOptions{Filename: "avatar.PNG", ContentType: "image/png", Folder: "avatars"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.PublicID, "cms-uploads/avatars/"))
	assert.True(t, strings.HasSuffix(f.PublicID, ".png"))
	assert.Equal(t, "/uploads/"+f.PublicID, f.URL)
	assert.Equal(t, int64(len(pngHeader)), f.Bytes)

	info, err := l.Info(ctx, f.PublicID)
	require.NoError(t, err)
	assert.Equal(t, f.Bytes, info.Bytes)
	assert.Equal(t, "png", info.Format)

	require.NoError(t, l.Delete(ctx, f.PublicID))
	_, err = l.Info(ctx, f.PublicID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, l.Delete(ctx, f.PublicID), ErrNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/uploads", "")
	require.NoError(t, err)

	_, err = l.Info(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Sign()
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestValidate(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	mt, err := Validate(fileHeader(t, "avatar.png", pngHeader), KindImage, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = Validate(fileHeader(t, "notes.pdf", pdf), KindDocument, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mt)

	_, err = Validate(fileHeader(t, "notes.pdf", pdf), KindImage, 1<<20)
	assert.ErrorIs(t, err, ErrFileTypeRejected)

	_, err = Validate(fileHeader(t, "script.sh", []byte("#!/bin/sh\necho hi\n")), KindAny, 1<<20)
	assert.ErrorIs(t, err, ErrFileTypeRejected)

	_, err = Validate(fileHeader(t, "big.png", pngHeader), KindAny, 8)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
