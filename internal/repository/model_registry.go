package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/report"
	applogger "FinCast/pkg/logger"
)

var (
	keyReplacer = strings.NewReplacer(".", "_", "-", "_")
	validKey    = regexp.MustCompile(`^[A-Za-z0-9_^=]+$`)
)

// SanitizeKey maps an instrument id to its artifact key: every '.' and '-' becomes '_'.
func SanitizeKey(instrument string) string {
	return keyReplacer.Replace(instrument)
}

// RegistryOption configures FSModelRegistry.
type RegistryOption func(*FSModelRegistry)

// WithSuffixes sets the file suffixes appended to a key for each artifact.
func WithSuffixes(model, scaler string) RegistryOption {
	return func(r *FSModelRegistry) {
		r.modelSuffix = model
		r.scalerSuffix = scaler
	}
}

// WithInstruments restricts the registry to a fixed set of instrument ids.
func WithInstruments(ids []string) RegistryOption {
	return func(r *FSModelRegistry) {
		r.instruments = append([]string(nil), ids...)
	}
}

// WithWindowSize sets the timestep count every loaded model must accept.
func WithWindowSize(n int) RegistryOption {
	return func(r *FSModelRegistry) {
		r.windowSize = n
	}
}

// WithRegistryLogger injects a structured logger.
func WithRegistryLogger(l *applogger.Logger) RegistryOption {
	return func(r *FSModelRegistry) {
		r.l = l
	}
}

// FSModelRegistry serves artifact pairs stored as <dir>/<key><suffix> files.
//
// Keys are claimed by the first raw id that resolves to them and stay claimed
// for the registry's lifetime, so "BRK.B" and "BRK-B" can never share a pair.
type FSModelRegistry struct {
	dir          string
	modelSuffix  string
	scalerSuffix string
	windowSize   int
	instruments  []string
	allowed      map[string]struct{}
	l            *applogger.Logger

	mu     sync.Mutex
	claims map[string]string
}

// NewFSModelRegistry creates a registry over dir. dir must be an existing directory.
func NewFSModelRegistry(dir string, opts ...RegistryOption) (*FSModelRegistry, error) {
	r := &FSModelRegistry{
		dir:          dir,
		modelSuffix:  "_model.json",
		scalerSuffix: "_scaler.json",
		windowSize:   models.WindowSize,
		claims:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.l == nil {
		r.l = applogger.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model dir %s is not a directory", dir)
	}

	if len(r.instruments) > 0 {
		r.allowed = make(map[string]struct{}, len(r.instruments))
		for _, id := range r.instruments {
			key := SanitizeKey(id)
			if !validKey.MatchString(key) {
				return nil, fmt.Errorf("instrument %q has an invalid artifact key %q", id, key)
			}
			if owner, ok := r.claims[key]; ok && owner != id {
				return nil, fmt.Errorf("instruments %q and %q share artifact key %q", owner, id, key)
			}
			r.claims[key] = id
			r.allowed[id] = struct{}{}
		}
	}
	return r, nil
}

// Dir returns the artifact directory.
func (r *FSModelRegistry) Dir() string { return r.dir }

// KeyOfFile returns the artifact key a file name in Dir belongs to.
func (r *FSModelRegistry) KeyOfFile(name string) (string, bool) {
	base := filepath.Base(name)
	for _, suffix := range []string{r.modelSuffix, r.scalerSuffix} {
		if key, ok := strings.CutSuffix(base, suffix); ok && key != "" {
			return key, true
		}
	}
	return "", false
}

// Health checks the artifact directory is still readable.
func (r *FSModelRegistry) Health(_ context.Context) error {
	f, err := os.Open(r.dir)
	if err != nil {
		return fmt.Errorf("model dir: %w", err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("model dir: %w", err)
	}
	return nil
}

// Stat resolves instrument to its artifact files. Both must exist; nothing is read.
func (r *FSModelRegistry) Stat(instrument string) (domrepo.ArtifactRef, error) {
	key, err := r.keyFor(instrument)
	if err != nil {
		return domrepo.ArtifactRef{}, err
	}

	ref := domrepo.ArtifactRef{
		Instrument: instrument,
		Key:        key,
		ModelPath:  filepath.Join(r.dir, key+r.modelSuffix),
		ScalerPath: filepath.Join(r.dir, key+r.scalerSuffix),
	}
	for _, p := range []string{ref.ModelPath, ref.ScalerPath} {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return domrepo.ArtifactRef{}, notFound(instrument)
			}
			return domrepo.ArtifactRef{}, fmt.Errorf("%w: stat %s: %w", models.ErrArtifactLoad, p, err)
		}
		if !info.Mode().IsRegular() {
			return domrepo.ArtifactRef{}, notFound(instrument)
		}
		if info.ModTime().After(ref.ModTime) {
			ref.ModTime = info.ModTime()
		}
	}

	if err := r.claim(key, instrument); err != nil {
		return domrepo.ArtifactRef{}, err
	}
	return ref, nil
}

// Load decodes both artifacts of ref and returns them as one pair, or nothing.
func (r *FSModelRegistry) Load(ctx context.Context, ref domrepo.ArtifactRef) (*domsvc.ArtifactPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	model, err := decodeFile(ref.ModelPath, forecast.DecodeModel)
	if err != nil {
		return nil, r.loadError(ref, ref.ModelPath, err)
	}
	scaler, err := decodeFile(ref.ScalerPath, forecast.DecodeScaler)
	if err != nil {
		return nil, r.loadError(ref, ref.ScalerPath, err)
	}
	if err := forecast.CheckCompatible(model, scaler, r.windowSize); err != nil {
		return nil, r.loadError(ref, ref.Key, err)
	}

	r.l.Info("artifact pair loaded",
		applogger.String("instrument", ref.Instrument),
		applogger.String("key", ref.Key),
		applogger.Duration("duration", time.Since(start)),
	)
	return &domsvc.ArtifactPair{
		Instrument: ref.Instrument,
		Key:        ref.Key,
		Model:      model,
		Scaler:     scaler,
		LoadedAt:   time.Now(),
	}, nil
}

// List returns the instruments that currently have a complete artifact pair.
func (r *FSModelRegistry) List() ([]models.InstrumentInfo, error) {
	if r.allowed != nil {
		out := make([]models.InstrumentInfo, 0, len(r.instruments))
		for _, id := range r.instruments {
			ref, err := r.Stat(id)
			if err != nil {
				if errors.Is(err, models.ErrModelNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, models.InstrumentInfo{Ticker: id, Key: ref.Key, Currency: report.CurrencyFor(id)})
		}
		return out, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			present[e.Name()] = struct{}{}
		}
	}

	var out []models.InstrumentInfo
	for name := range present {
		key, ok := strings.CutSuffix(name, r.modelSuffix)
		if !ok || key == "" || !validKey.MatchString(key) {
			continue
		}
		if _, ok := present[key+r.scalerSuffix]; !ok {
			continue
		}
		ticker := r.owner(key)
		out = append(out, models.InstrumentInfo{Ticker: ticker, Key: key, Currency: report.CurrencyFor(ticker)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *FSModelRegistry) keyFor(instrument string) (string, error) {
	if instrument == "" {
		return "", notFound(instrument)
	}
	if r.allowed != nil {
		if _, ok := r.allowed[instrument]; !ok {
			return "", notFound(instrument)
		}
	}
	key := SanitizeKey(instrument)
	if !validKey.MatchString(key) {
		return "", notFound(instrument)
	}
	r.mu.Lock()
	owner, ok := r.claims[key]
	r.mu.Unlock()
	if ok && owner != instrument {
		return "", fmt.Errorf("model for %s not available: key %s belongs to %s: %w",
			instrument, key, owner, models.ErrModelNotFound)
	}
	return key, nil
}

func (r *FSModelRegistry) claim(key, instrument string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.claims[key]; ok && owner != instrument {
		return fmt.Errorf("model for %s not available: key %s belongs to %s: %w",
			instrument, key, owner, models.ErrModelNotFound)
	}
	r.claims[key] = instrument
	return nil
}

// owner returns the raw id that claimed key, or the key itself.
func (r *FSModelRegistry) owner(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.claims[key]; ok {
		return id
	}
	return key
}

func (r *FSModelRegistry) loadError(ref domrepo.ArtifactRef, what string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(ref.Instrument)
	}
	r.l.Error("artifact load failed",
		applogger.String("instrument", ref.Instrument),
		applogger.String("artifact", what),
		applogger.Error(err),
	)
	return fmt.Errorf("%w: %s: %w", models.ErrArtifactLoad, what, err)
}

func decodeFile[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := decode(f)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Resolve locates and loads the pair for instrument in one step.
func Resolve(ctx context.Context, r domrepo.ModelRegistry, instrument string) (*domsvc.ArtifactPair, error) {
	ref, err := r.Stat(instrument)
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, ref)
}

func notFound(instrument string) error {
	return fmt.Errorf("model for %s not available: %w", instrument, models.ErrModelNotFound)
}

var _ domrepo.ModelRegistry = (*FSModelRegistry)(nil)
