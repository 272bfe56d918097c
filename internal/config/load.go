package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/fsutil"
	"github.com/specialistvlad/pacforge/internal/resolver"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes every top-level block of a configuration file.
type fileRoot struct {
	Policy   *policyBlock   `hcl:"policy,block"`
	Resolver *resolverBlock `hcl:"resolver,block"`
	Fetch    *fetchBlock    `hcl:"fetch,block"`
	Log      *logBlock      `hcl:"log,block"`
	Server   *serverBlock   `hcl:"server,block"`
	Progress *progressBlock `hcl:"progress,block"`
	Paths    *pathsBlock    `hcl:"paths,block"`
	Tools    *toolsBlock    `hcl:"tools,block"`
	Remain   hcl.Body       `hcl:",remain"`
}

type policyBlock struct {
	AsDeps          *bool    `hcl:"as_deps,optional"`
	SkipSatisfied   *bool    `hcl:"skip_satisfied,optional"`
	Rebuild         *bool    `hcl:"rebuild,optional"`
	BuildTests      *bool    `hcl:"build_tests,optional"`
	RemoveBuildOnly *bool    `hcl:"remove_build_only,optional"`
	Mode            *string  `hcl:"mode,optional"`
	UpgradeMenu     *bool    `hcl:"upgrade_menu,optional"`
	Devel           *bool    `hcl:"devel,optional"`
	Ignore          []string `hcl:"ignore,optional"`
}

type resolverBlock struct {
	ProviderOrder []string `hcl:"provider_order,optional"`
	RemoteTimeout *string  `hcl:"remote_timeout,optional"`
}

type fetchBlock struct {
	Concurrency *int    `hcl:"concurrency,optional"`
	Timeout     *string `hcl:"timeout,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type serverBlock struct {
	Port *int `hcl:"port,optional"`
}

type progressBlock struct {
	SocketIOURL        *string `hcl:"socketio_url,optional"`
	Namespace          *string `hcl:"namespace,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}

type pathsBlock struct {
	Snapshot *string `hcl:"snapshot,optional"`
	CloneDir *string `hcl:"clone_dir,optional"`
}

type toolsBlock struct {
	Git     *string `hcl:"git,optional"`
	Makepkg *string `hcl:"makepkg,optional"`
	Pacman  *string `hcl:"pacman,optional"`
	Sudo    *string `hcl:"sudo,optional"`
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set are not overridden.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading env file %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration at path on top of Default. path is a file
// or a directory whose .hcl files are applied in lexical order. A missing
// path is not an error.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("Configuration file not found, using defaults.", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = fsutil.FindFilesByExtension(path, ".hcl"); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", path, err)
		}
		sort.Strings(files)
	}

	parser := hclparse.NewParser()
	for _, f := range files {
		if err := loadFile(parser, f, cfg); err != nil {
			return nil, err
		}
		logger.Debug("Configuration loaded.", "path", f)
	}
	return cfg, nil
}

func loadFile(parser *hclparse.Parser, path string, cfg *Config) error {
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	if err := root.apply(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// evalContext exposes the process environment as the env object.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

func (r *fileRoot) apply(cfg *Config) error {
	if p := r.Policy; p != nil {
		setBool(&cfg.Policy.AsDeps, p.AsDeps)
		setBool(&cfg.Policy.SkipSatisfied, p.SkipSatisfied)
		setBool(&cfg.Policy.Rebuild, p.Rebuild)
		setBool(&cfg.Policy.BuildTests, p.BuildTests)
		setBool(&cfg.Policy.RemoveBuildOnly, p.RemoveBuildOnly)
		setBool(&cfg.UpgradeMenu, p.UpgradeMenu)
		setBool(&cfg.Devel, p.Devel)
		if p.Mode != nil {
			cfg.Policy.Mode = resolver.Mode(*p.Mode)
		}
		if p.Ignore != nil {
			cfg.Policy.Ignore = p.Ignore
		}
	}
	if rb := r.Resolver; rb != nil {
		if rb.ProviderOrder != nil {
			cfg.ProviderOrder = rb.ProviderOrder
		}
		if err := setDuration(&cfg.RemoteTimeout, rb.RemoteTimeout, "resolver.remote_timeout"); err != nil {
			return err
		}
	}
	if f := r.Fetch; f != nil {
		if f.Concurrency != nil {
			cfg.FetchConcurrency = *f.Concurrency
		}
		if err := setDuration(&cfg.FetchTimeout, f.Timeout, "fetch.timeout"); err != nil {
			return err
		}
	}
	if l := r.Log; l != nil {
		setString(&cfg.LogLevel, l.Level)
		setString(&cfg.LogFormat, l.Format)
	}
	if s := r.Server; s != nil && s.Port != nil {
		cfg.MetricsPort = *s.Port
	}
	if p := r.Progress; p != nil {
		setString(&cfg.SocketIOURL, p.SocketIOURL)
		setString(&cfg.SocketIONamespace, p.Namespace)
		setBool(&cfg.SocketIOInsecure, p.InsecureSkipVerify)
	}
	if p := r.Paths; p != nil {
		setString(&cfg.SnapshotPath, p.Snapshot)
		setString(&cfg.CloneDir, p.CloneDir)
	}
	if t := r.Tools; t != nil {
		setString(&cfg.Tools.Git, t.Git)
		setString(&cfg.Tools.Makepkg, t.Makepkg)
		setString(&cfg.Tools.Pacman, t.Pacman)
		setString(&cfg.Tools.Sudo, t.Sudo)
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
