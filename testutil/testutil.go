// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/survey-board/database"
)

// OpenDB opens a fresh, fully migrated database that lives for the test.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { db.Close() })
	return db
}

// PNG returns the bytes of a small valid PNG image.
func PNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// PNGDataURI returns a data URI carrying data as a PNG image.
func PNGDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
