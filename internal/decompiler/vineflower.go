package decompiler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/decompcache/internal/logging"
	"github.com/Norgate-AV/decompcache/internal/sink"
)

// VineflowerConfig holds the settings needed to launch the decompiler
type VineflowerConfig struct {
	// JavaPath is the JVM launcher (default "java")
	JavaPath string

	// JarPath is the Vineflower (or FernFlower-compatible) jar
	JarPath string

	// Heap is the -Xmx value, e.g. "2g". Empty leaves the JVM default.
	Heap string
}

// Vineflower runs the Vineflower decompiler in a child JVM
type Vineflower struct {
	cfg    VineflowerConfig
	cb     *CommandBuilder
	logger *slog.Logger

	versionOnce sync.Once
	version     string
}

// NewVineflower creates a Vineflower decompiler
func NewVineflower(cfg VineflowerConfig, logger *slog.Logger) *Vineflower {
	if cfg.JavaPath == "" {
		cfg.JavaPath = "java"
	}

	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &Vineflower{
		cfg:    cfg,
		cb:     NewCommandBuilder(),
		logger: logger,
	}
}

// Name implements Decompiler
func (v *Vineflower) Name() string {
	return "vineflower"
}

// Version implements Decompiler. It is read from the jar manifest, then the
// jar file name, and is "unknown" otherwise.
func (v *Vineflower) Version() string {
	v.versionOnce.Do(func() {
		v.version = jarVersion(v.cfg.JarPath)
	})

	return v.version
}

// Decompile implements Decompiler
func (v *Vineflower) Decompile(ctx context.Context, artifact string, s sink.Sink, opts Options) error {
	if v.cfg.JarPath == "" {
		return ErrNotConfigured
	}

	staging, err := os.MkdirTemp("", "decompcache-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	inputs, err := v.inputs(artifact, filepath.Join(staging, "in"))
	if err != nil {
		return err
	}

	if len(inputs) == 0 {
		v.logger.Debug("No classes to decompile", "artifact", artifact)
		return nil
	}

	stdout := logging.NewLineWriter(v.logger, slog.LevelDebug, "decompiler output")
	defer stdout.Close()

	var outputs []string
	for i, input := range inputs {
		out := filepath.Join(staging, "out", strconv.Itoa(i))
		if err := os.MkdirAll(out, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		cmdArgs, err := v.cb.BuildCommandArgs(v.cfg.JarPath, v.cfg.Heap, input, out, opts)
		if err != nil {
			return err
		}

		v.logger.Debug("Running decompiler", "java", v.cfg.JavaPath, "args", strings.Join(cmdArgs, " "))

		if err := v.cb.ExecuteCommand(ctx, v.cfg.JavaPath, cmdArgs, stdout); err != nil {
			return err
		}

		outputs = append(outputs, out)
	}

	return emit(ctx, outputs, s, opts.threads())
}

// inputs returns the jars to hand to the decompiler for artifact
func (v *Vineflower) inputs(artifact, extractDir string) ([]string, error) {
	candidates := []string{artifact}

	if IsAar(artifact) {
		jars, err := ExtractAarJars(artifact, extractDir)
		if err != nil {
			return nil, err
		}

		candidates = jars
	}

	var inputs []string
	for _, jar := range candidates {
		n, err := CountClasses(jar)
		if err != nil {
			return nil, err
		}

		if n > 0 {
			inputs = append(inputs, jar)
		}
	}

	return inputs, nil
}

// emit streams decompiler output into the sink. Loose .java files and
// sources archives are both accepted since decompilers differ in what they
// write for archive input.
func emit(ctx context.Context, outputs []string, s sink.Sink, threads int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	var archives []io.Closer
	defer func() {
		for _, c := range archives {
			c.Close()
		}
	}()

	for _, out := range outputs {
		err := filepath.WalkDir(out, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if gctx.Err() != nil {
				return gctx.Err()
			}

			rel, err := filepath.Rel(out, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel != "." {
					return s.SaveFolder(rel)
				}
				return nil
			}

			switch strings.ToLower(filepath.Ext(p)) {
			case ".java":
				g.Go(func() error {
					data, err := os.ReadFile(p)
					if err != nil {
						return err
					}
					return s.SaveClass(strings.TrimSuffix(rel, filepath.Ext(rel)), data)
				})
			case ".jar", ".zip":
				r, err := zip.OpenReader(p)
				if err != nil {
					return fmt.Errorf("failed to open decompiler output %s: %w", p, err)
				}
				archives = append(archives, r)
				return emitArchive(g, &r.Reader, s)
			default:
				g.Go(func() error {
					f, err := os.Open(p)
					if err != nil {
						return err
					}
					defer f.Close()
					return s.CopyResource(rel, f)
				})
			}

			return nil
		})
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return fmt.Errorf("failed to store decompiled source: %w", werr)
			}
			return fmt.Errorf("failed to collect decompiler output: %w", err)
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to store decompiled source: %w", err)
	}

	return nil
}

// emitArchive schedules every entry of a sources archive
func emitArchive(g *errgroup.Group, r *zip.Reader, s sink.Sink) error {
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			if err := s.SaveFolder(strings.TrimSuffix(f.Name, "/")); err != nil {
				return err
			}
			continue
		}

		f := f
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer rc.Close()

			if !strings.HasSuffix(f.Name, ".java") {
				return s.CopyResource(f.Name, rc)
			}

			data, err := io.ReadAll(rc)
			if err != nil {
				return err
			}

			return s.SaveClass(strings.TrimSuffix(f.Name, ".java"), data)
		})
	}

	return nil
}

var versionInName = regexp.MustCompile(`-(\d+(?:\.\d+)+[\w.+-]*)\.jar$`)

// jarVersion reads Implementation-Version from the jar manifest, falling back to the file name
func jarVersion(jar string) string {
	if jar == "" {
		return "unknown"
	}

	if r, err := zip.OpenReader(jar); err == nil {
		defer r.Close()

		for _, f := range r.File {
			if f.Name != "META-INF/MANIFEST.MF" {
				continue
			}

			rc, err := f.Open()
			if err != nil {
				break
			}

			scanner := bufio.NewScanner(rc)
			for scanner.Scan() {
				if v, ok := strings.CutPrefix(scanner.Text(), "Implementation-Version:"); ok {
					rc.Close()
					return strings.TrimSpace(v)
				}
			}
			rc.Close()
		}
	}

	if m := versionInName.FindStringSubmatch(filepath.Base(jar)); m != nil {
		return m[1]
	}

	return "unknown"
}
