package vector

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/osusume/internal/models"
)

const (
	blobMagic     = "OSVI"
	formatVersion = 1
	sidecarSuffix = ".meta"
	blobHeaderLen = len(blobMagic) + 12
)

// sidecar is the JSON document stored next to the index blob.
type sidecar struct {
	Version   int                    `json:"version"`
	Dimension int                    `json:"dimension"`
	IDs       []string               `json:"ids"`
	Metadatas map[string]models.Item `json:"metadatas"`
}

// encodeBlob writes magic, version, dimension and count followed by the vectors as
// little-endian float32.
func encodeBlob(dim int, vectors [][]float32) []byte {
	var buf bytes.Buffer
	buf.Grow(len(blobMagic) + 12 + len(vectors)*dim*4)
	buf.WriteString(blobMagic)
	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], formatVersion)
	binary.LittleEndian.PutUint32(header[4:8], uint32(dim))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(vectors)))
	buf.Write(header[:])
	word := make([]byte, 4)
	for _, vec := range vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(word, math.Float32bits(v))
			buf.Write(word)
		}
	}
	return buf.Bytes()
}

// decodeBlob reads a blob of size bytes. The header's record count must account for
// exactly the remaining bytes.
func decodeBlob(r io.Reader, dim int, size int64) ([][]float32, error) {
	magic := make([]byte, len(blobMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != blobMagic {
		return nil, fmt.Errorf("not an index file (magic %q)", magic)
	}
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	version := binary.LittleEndian.Uint32(header[0:4])
	fileDim := binary.LittleEndian.Uint32(header[4:8])
	count := binary.LittleEndian.Uint32(header[8:12])
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported index format version %d", version)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("%w: index file has %d, expected %d", ErrDimensionMismatch, fileDim, dim)
	}
	want := uint64(blobHeaderLen) + uint64(count)*uint64(dim)*4
	if size < 0 || uint64(size) != want {
		return nil, fmt.Errorf("header declares %d vectors (%d bytes) but blob is %d bytes", count, want, size)
	}
	row := make([]byte, dim*4)
	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func readBlobFile(path string, dim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	vectors, err := decodeBlob(f, dim, info.Size())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vectors, nil
}

func readSidecarFile(path string, dim int) (*sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if sc.Version != formatVersion {
		return nil, fmt.Errorf("decode %s: unsupported sidecar version %d", path, sc.Version)
	}
	if sc.Dimension != dim {
		return nil, fmt.Errorf("decode %s: %w: sidecar has %d, expected %d", path, ErrDimensionMismatch, sc.Dimension, dim)
	}
	if sc.Metadatas == nil {
		sc.Metadatas = make(map[string]models.Item)
	}
	return &sc, nil
}

// writeFileAtomic replaces path with data so readers see either the old or the new file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
