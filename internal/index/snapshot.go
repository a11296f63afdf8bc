package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/filestore"
	"github.com/xxxsen/groundqa/internal/model"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

const (
	snapshotMagic   = "GQIX"
	snapshotVersion = 1
	maxDimension    = 1 << 16

	manifestFile   = "manifest.json"
	embeddingsFile = "embeddings.bin"
	chunksFile     = "chunks.jsonl"
)

type Manifest struct {
	BuildID   string `json:"build_id"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	CreatedAt int64  `json:"created_at"`
}

type embeddingsHeader struct {
	Magic     [4]byte
	Version   uint32
	Count     uint32
	Dimension uint32
}

// Snapshot persists an index as build artifacts under prefix/builds/<id>/.
// The manifest at prefix/manifest.json is written last and names the
// active build, so a reader never mixes artifacts of two builds.
type Snapshot struct {
	store  filestore.Store
	prefix string
}

func NewSnapshot(store filestore.Store, prefix string) *Snapshot {
	return &Snapshot{store: store, prefix: prefix}
}

func (s *Snapshot) buildKey(buildID, name string) string {
	return path.Join(s.prefix, "builds", buildID, name)
}

func (s *Snapshot) Write(ctx context.Context, buildID string, chunks []model.Chunk) (*Manifest, error) {
	if buildID == "" {
		return nil, fmt.Errorf("build id is required")
	}
	idx, err := Build(chunks)
	if err != nil {
		return nil, err
	}
	var emb bytes.Buffer
	if err := EncodeEmbeddings(&emb, idx); err != nil {
		return nil, err
	}
	var meta bytes.Buffer
	if err := EncodeChunks(&meta, idx); err != nil {
		return nil, err
	}
	manifest := &Manifest{
		BuildID:   buildID,
		Count:     idx.Len(),
		Dimension: idx.Dimension(),
		CreatedAt: time.Now().Unix(),
	}
	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, s.buildKey(buildID, embeddingsFile), emb.Bytes()); err != nil {
		return nil, fmt.Errorf("save embeddings: %w", err)
	}
	if err := s.save(ctx, s.buildKey(buildID, chunksFile), meta.Bytes()); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}
	if err := s.save(ctx, path.Join(s.prefix, manifestFile), manifestData); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}
	return manifest, nil
}

func (s *Snapshot) save(ctx context.Context, key string, data []byte) error {
	return s.store.Save(ctx, key, bytes.NewReader(data), int64(len(data)))
}

func (s *Snapshot) ReadManifest(ctx context.Context) (*Manifest, error) {
	rc, err := s.store.Open(ctx, path.Join(s.prefix, manifestFile))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", appErr.ErrSnapshotMismatch, err)
	}
	return &manifest, nil
}

func (s *Snapshot) Version(ctx context.Context) (string, error) {
	manifest, err := s.ReadManifest(ctx)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return manifest.BuildID, nil
}

// Load reads the active build. A missing manifest yields an empty index;
// any count or dimension disagreement between artifacts is ErrSnapshotMismatch.
func (s *Snapshot) Load(ctx context.Context) (*FlatIndex, string, error) {
	manifest, err := s.ReadManifest(ctx)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			logutil.GetLogger(ctx).Warn("index snapshot not found, serving empty index", zap.String("prefix", s.prefix))
			return &FlatIndex{}, "", nil
		}
		return nil, "", err
	}
	embRC, err := s.store.Open(ctx, s.buildKey(manifest.BuildID, embeddingsFile))
	if err != nil {
		return nil, "", fmt.Errorf("%w: open embeddings: %v", appErr.ErrSnapshotMismatch, err)
	}
	defer embRC.Close()
	metaRC, err := s.store.Open(ctx, s.buildKey(manifest.BuildID, chunksFile))
	if err != nil {
		return nil, "", fmt.Errorf("%w: open chunks: %v", appErr.ErrSnapshotMismatch, err)
	}
	defer metaRC.Close()

	idx, err := Decode(embRC, metaRC, manifest.Count)
	if err != nil {
		return nil, "", err
	}
	if idx.Len() > 0 && idx.Dimension() != manifest.Dimension {
		return nil, "", fmt.Errorf("%w: dimension %d, manifest says %d", appErr.ErrSnapshotMismatch, idx.Dimension(), manifest.Dimension)
	}
	logutil.GetLogger(ctx).Info("index snapshot loaded",
		zap.String("build_id", manifest.BuildID),
		zap.Int("chunks", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
	)
	return idx, manifest.BuildID, nil
}

func EncodeEmbeddings(w io.Writer, idx *FlatIndex) error {
	header := embeddingsHeader{
		Version:   snapshotVersion,
		Count:     uint32(idx.Len()),
		Dimension: uint32(idx.Dimension()),
	}
	copy(header.Magic[:], snapshotMagic)
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	for _, chunk := range idx.Chunks() {
		if err := binary.Write(w, binary.LittleEndian, chunk.Embedding); err != nil {
			return err
		}
	}
	return nil
}

func EncodeChunks(w io.Writer, idx *FlatIndex) error {
	enc := json.NewEncoder(w)
	for _, chunk := range idx.Chunks() {
		if err := enc.Encode(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Decode rebuilds an index from aligned embeddings and chunk records.
// expected is the record count announced by the manifest.
func Decode(embeddings io.Reader, chunks io.Reader, expected int) (*FlatIndex, error) {
	var header embeddingsHeader
	if err := binary.Read(embeddings, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", appErr.ErrSnapshotMismatch, err)
	}
	if string(header.Magic[:]) != snapshotMagic || header.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: bad embeddings header", appErr.ErrSnapshotMismatch)
	}
	if int(header.Count) != expected {
		return nil, fmt.Errorf("%w: %d embeddings, manifest says %d", appErr.ErrSnapshotMismatch, header.Count, expected)
	}
	if header.Dimension > maxDimension || (header.Count > 0 && header.Dimension == 0) {
		return nil, fmt.Errorf("%w: invalid dimension %d", appErr.ErrSnapshotMismatch, header.Dimension)
	}

	records := make([]model.Chunk, 0, header.Count)
	scanner := bufio.NewScanner(chunks)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk model.Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("%w: chunk record %d: %v", appErr.ErrSnapshotMismatch, len(records), err)
		}
		records = append(records, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	if len(records) != int(header.Count) {
		return nil, fmt.Errorf("%w: %d chunk records, %d embeddings", appErr.ErrSnapshotMismatch, len(records), header.Count)
	}

	dim := int(header.Dimension)
	for i := range records {
		vec := make([]float32, dim)
		if err := binary.Read(embeddings, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: embedding %d: %v", appErr.ErrSnapshotMismatch, i, err)
		}
		records[i].Embedding = vec
	}
	var extra [1]byte
	if n, _ := embeddings.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: trailing embedding data", appErr.ErrSnapshotMismatch)
	}
	idx, err := Build(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSnapshotMismatch, err)
	}
	return idx, nil
}
