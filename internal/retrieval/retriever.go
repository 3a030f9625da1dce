// Package retrieval maintains the persisted vector index over the policy
// corpus and answers nearest-neighbor queries against it.
//
// Two artifacts live on disk: the binary vector index and a JSON metadata
// file holding the document list, in ordinal order. They are always written
// together through temporary files and renamed into place; a pair whose
// counts or embedder disagree is reported as CorruptIndex.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"supportbot/internal/corpus"
	"supportbot/internal/embedding"
	"supportbot/internal/vectorstore"
	"supportbot/internal/vectorstore/flat"
	supporterr "supportbot/pkg/errors"
)

// Config names the corpus source and the two persisted artifacts.
type Config struct {
	CorpusPath   string
	IndexPath    string
	MetadataPath string
}

// Option customises a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger used for build and recovery events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIndexFactory swaps the nearest-neighbor structure. The default is an
// exact flat L2 index.
func WithIndexFactory(f vectorstore.Factory) Option {
	return func(r *Retriever) {
		if f != nil {
			r.newIndex = f
		}
	}
}

// Match is one query hit.
type Match struct {
	Ordinal  int
	Text     string
	Distance float32
}

// Retriever owns the embedder and the current index snapshot. Query and
// Load may run concurrently; Build and EnsureReady exclude both.
type Retriever struct {
	cfg      Config
	embedder embedding.Embedder
	newIndex vectorstore.Factory
	logger   *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// New creates a Retriever. The embedder is used for both building and
// querying and must therefore stay the same model for a given index.
func New(cfg Config, emb embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		cfg:      cfg,
		embedder: emb,
		newIndex: flat.Factory,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build indexes the corpus and persists both artifacts. Unless force is
// set, it does nothing when both artifacts already exist.
func (r *Retriever) Build(ctx context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && r.artifactsExist() {
		r.logger.Info("index and metadata found, skipping rebuild",
			"index", r.cfg.IndexPath, "metadata", r.cfg.MetadataPath)
		return nil
	}
	return r.build(ctx)
}

// Load reads both artifacts from disk without building or installing
// anything.
func (r *Retriever) Load(_ context.Context) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load()
}

// EnsureReady prepares the retriever at application startup: it builds
// when an artifact is missing, otherwise loads the persisted pair. A
// corrupt pair is rebuilt once; if that rebuild fails the failure is
// reported as CorpusUnavailable.
func (r *Retriever) EnsureReady(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.artifactsExist() {
		return r.build(ctx)
	}
	snap, err := r.load()
	if err == nil {
		r.snap = snap
		r.logger.Debug("loaded index", "docs", snap.Len(), "dimension", snap.Dimension())
		return nil
	}
	if !supporterr.IsCorruptIndex(err) {
		return err
	}

	r.logger.Warn("persisted index is corrupt, rebuilding", "error", err)
	if err := r.build(ctx); err != nil {
		if supporterr.IsCorpusUnavailable(err) {
			return err
		}
		return supporterr.Errorf(supporterr.CodeCorpusUnavailable, "rebuilding corrupt index: %v", err)
	}
	return nil
}

// Current returns the installed snapshot, or nil before the first
// successful EnsureReady, Build or Query.
func (r *Retriever) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Query returns the texts of the k documents nearest to text, nearest
// first. Fewer than k come back when the corpus is smaller.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]string, error) {
	matches, err := r.QueryScored(ctx, text, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out, nil
}

// QueryScored is Query with ordinals and squared distances.
func (r *Retriever) QueryScored(ctx context.Context, text string, k int) ([]Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, supporterr.New(supporterr.CodeQueryInvalid, "query text is empty")
	}
	if k < 1 {
		return nil, supporterr.New(supporterr.CodeQueryInvalid, "k must be positive", supporterr.Field("k", k))
	}
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, supporterr.New(supporterr.CodeEmbeddingResponse, "expected one query embedding",
			supporterr.Field("got", len(vecs)))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.snap

	if len(vecs[0]) != snap.index.Dimension() && snap.index.Len() > 0 {
		return nil, supporterr.New(supporterr.CodeEmbeddingResponse, "query embedding dimension mismatch",
			supporterr.Field("expected", snap.index.Dimension()), supporterr.Field("got", len(vecs[0])))
	}
	hits, err := snap.index.Search(vecs[0], k)
	if err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeIndexCorrupt, "searching index")
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.ID < 0 || h.ID >= len(snap.meta.Docs) {
			return nil, supporterr.New(supporterr.CodeIndexCorrupt, "index returned out-of-range ordinal",
				supporterr.Field("ordinal", h.ID), supporterr.Field("docs", len(snap.meta.Docs)))
		}
		matches = append(matches, Match{Ordinal: h.ID, Text: snap.meta.Docs[h.ID], Distance: h.Distance})
	}
	return matches, nil
}

func (r *Retriever) ensureLoaded() error {
	r.mu.RLock()
	ready := r.snap != nil
	r.mu.RUnlock()
	if ready {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil {
		return nil
	}
	snap, err := r.load()
	if err != nil {
		return err
	}
	r.snap = snap
	return nil
}

// build must be called with the write lock held.
func (r *Retriever) build(ctx context.Context) error {
	start := time.Now()
	docs, err := corpus.Read(r.cfg.CorpusPath)
	if err != nil {
		return err
	}

	vecs, err := r.embedder.Embed(ctx, docs)
	if err != nil {
		return err
	}
	if len(vecs) != len(docs) {
		return supporterr.New(supporterr.CodeEmbeddingResponse, "embedding count mismatch",
			supporterr.Field("expected", len(docs)), supporterr.Field("got", len(vecs)))
	}

	idx := r.newIndex()
	if err := idx.Build(vecs); err != nil {
		return supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "building index")
	}
	if idx.Dimension() != r.embedder.Dimension() {
		return supporterr.New(supporterr.CodeEmbeddingResponse, "embedding dimension differs from model",
			supporterr.Field("expected", r.embedder.Dimension()), supporterr.Field("got", idx.Dimension()))
	}

	meta := metadata{
		Docs:      docs,
		Embedder:  r.embedder.Name(),
		Dimension: idx.Dimension(),
		BuiltAt:   time.Now().UTC(),
	}
	if err := r.persist(idx, &meta); err != nil {
		return err
	}

	r.snap = &Snapshot{index: idx, meta: meta}
	r.logger.Info("built index",
		"docs", len(docs), "dimension", idx.Dimension(), "embedder", meta.Embedder,
		"duration", time.Since(start))
	return nil
}

// persist stamps meta with the index checksum and writes both artifacts.
func (r *Retriever) persist(idx vectorstore.Index, meta *metadata) error {
	blob, err := idx.MarshalBinary()
	if err != nil {
		return supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "encoding index")
	}
	meta.IndexSHA256 = checksum(blob)
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "encoding metadata")
	}

	idxTmp, err := writeTemp(r.cfg.IndexPath, blob)
	if err != nil {
		return err
	}
	metaTmp, err := writeTemp(r.cfg.MetadataPath, metaJSON)
	if err != nil {
		_ = os.Remove(idxTmp)
		return err
	}
	if err := os.Rename(idxTmp, r.cfg.IndexPath); err != nil {
		_ = os.Remove(idxTmp)
		_ = os.Remove(metaTmp)
		return supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "installing index", supporterr.FieldPath(r.cfg.IndexPath))
	}
	if err := os.Rename(metaTmp, r.cfg.MetadataPath); err != nil {
		_ = os.Remove(metaTmp)
		return supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "installing metadata", supporterr.FieldPath(r.cfg.MetadataPath))
	}
	return nil
}

// load must be called with at least the read lock held.
func (r *Retriever) load() (*Snapshot, error) {
	blob, err := os.ReadFile(r.cfg.IndexPath)
	if err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeIndexCorrupt, "reading index", supporterr.FieldPath(r.cfg.IndexPath))
	}
	idx := r.newIndex()
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeIndexCorrupt, "decoding index", supporterr.FieldPath(r.cfg.IndexPath))
	}

	raw, err := os.ReadFile(r.cfg.MetadataPath)
	if err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeIndexCorrupt, "reading metadata", supporterr.FieldPath(r.cfg.MetadataPath))
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeIndexCorrupt, "decoding metadata", supporterr.FieldPath(r.cfg.MetadataPath))
	}
	// The two renames are not atomic as a pair; the checksum ties them.
	if sum := checksum(blob); meta.IndexSHA256 != sum {
		return nil, supporterr.New(supporterr.CodeIndexCorrupt, "metadata does not describe this index",
			supporterr.Field("expected", meta.IndexSHA256), supporterr.Field("got", sum))
	}

	if len(meta.Docs) != idx.Len() {
		return nil, supporterr.New(supporterr.CodeIndexCorrupt, "metadata and index disagree on document count",
			supporterr.Field("docs", len(meta.Docs)), supporterr.Field("vectors", idx.Len()))
	}
	if meta.Embedder != r.embedder.Name() {
		return nil, supporterr.New(supporterr.CodeIndexCorrupt, "index was built with a different embedder",
			supporterr.Field("expected", r.embedder.Name()), supporterr.Field("got", meta.Embedder))
	}
	if idx.Len() > 0 && (idx.Dimension() != r.embedder.Dimension() || meta.Dimension != idx.Dimension()) {
		return nil, supporterr.New(supporterr.CodeIndexCorrupt, "index dimension mismatch",
			supporterr.Field("expected", r.embedder.Dimension()), supporterr.Field("got", idx.Dimension()))
	}
	return &Snapshot{index: idx, meta: meta}, nil
}

func checksum(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

func (r *Retriever) artifactsExist() bool {
	return fileExists(r.cfg.IndexPath) && fileExists(r.cfg.MetadataPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeTemp writes data next to path and returns the temporary file name.
func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "creating data directory", supporterr.FieldPath(dir))
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "creating temp file", supporterr.FieldPath(path))
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return "", supporterr.Wrap(err, supporterr.CodeIndexBuildFailure, "writing temp file", supporterr.FieldPath(path))
	}
	return f.Name(), nil
}
