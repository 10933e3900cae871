//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ja7ad/procwatch/pkg/metrics"
	"github.com/ja7ad/procwatch/pkg/monitor"
	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/system/proc"
)

const envPrefix = "PROCWATCH"

type opts struct {
	config      string
	profile     string
	interval    time.Duration
	samples     int
	top         int
	sortBy      string
	procRoot    string
	cgroups     bool
	metricsAddr string
	logLevel    string
}

func main() {
	v := viper.New()

	root := &cobra.Command{
		Use:   "procwatch",
		Short: "Linux process monitor with sustained-threshold alerts",
		Long: `procwatch samples every process in /proc on a fixed interval, derives
CPU and memory usage, and raises an alert when a process stays above a
profile's threshold for the configured duration.

Profiles are read from a YAML or TOML file (--config) and reloaded when the
file changes. Every flag may also be set as PROCWATCH_<FLAG>.

Examples:
  procwatch
  procwatch -c profiles.yaml -p build-server --top 20
  PROCWATCH_INTERVAL=500ms procwatch --metrics-addr :9102`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), readOpts(v))
		},
	}

	f := root.Flags()
	f.StringP("config", "c", "", "profile file (yaml or toml); built-in default profile if empty")
	f.StringP("profile", "p", "default", "name of the profile to run")
	f.DurationP("interval", "i", 0, "override the profile's sample interval (0 = use profile)")
	f.IntP("samples", "s", 0, "stop after this many published tables (0 = run until Ctrl-C)")
	f.IntP("top", "n", 15, "rows to print per table")
	f.String("sort", "cpu", "table order: cpu | memory")
	f.String("proc-root", proc.DefaultRoot, "mount point of the proc filesystem")
	f.Bool("cgroups", false, "resolve each process's cgroup path")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	f.String("log-level", "info", "log level: debug | info | warn | error")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(profilesCmd(v))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func readOpts(v *viper.Viper) opts {
	return opts{
		config:      v.GetString("config"),
		profile:     v.GetString("profile"),
		interval:    v.GetDuration("interval"),
		samples:     v.GetInt("samples"),
		top:         v.GetInt("top"),
		sortBy:      v.GetString("sort"),
		procRoot:    v.GetString("proc-root"),
		cgroups:     v.GetBool("cgroups"),
		metricsAddr: v.GetString("metrics-addr"),
		logLevel:    v.GetString("log-level"),
	}
}

func profilesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles defined in --config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := loadProfiles(v.GetString("config"))
			if err != nil {
				return err
			}
			return printProfiles(cmd.OutOrStdout(), set)
		},
	}
}

func run(ctx context.Context, o opts) error {
	if o.interval < 0 {
		return fmt.Errorf("interval must be >= 0")
	}
	order, err := parseOrder(o.sortBy)
	if err != nil {
		return err
	}

	log, err := newLogger(o.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	set, err := loadProfiles(o.config)
	if err != nil {
		return err
	}
	p, err := selectProfile(set, o.profile, o.interval)
	if err != nil {
		return err
	}

	info, err := host.Detect()
	if err != nil {
		log.Warn("host detection incomplete", zap.Error(err))
	}
	cg, cgDetail, err := cgroup.Detect()
	if err != nil {
		log.Debug("cgroup detection failed", zap.Error(err))
	}
	printHeader(os.Stdout, info, cg, cgDetail, p, time.Now())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		srv := serveMetrics(o.metricsAddr, reg, log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	readerOpts := []proc.Option{proc.WithPageSize(info.PageSize)}
	if o.procRoot != proc.DefaultRoot {
		readerOpts = append(readerOpts, proc.WithFs(afero.NewOsFs(), o.procRoot))
	}
	if o.cgroups {
		readerOpts = append(readerOpts, proc.WithCgroups())
	}

	s := monitor.New(proc.NewReader(readerOpts...), info, &monitor.Config{
		Logger:  log,
		Metrics: m,
	})
	if err := s.Start(ctx, p); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() { _ = s.Shutdown() }()

	if o.config != "" {
		watchProfiles(o.config, o.profile, o.interval, s, log)
	}

	r := newRenderer(os.Stdout, o.top, order)
	published := 0
	for {
		select {
		case <-ctx.Done():
			_ = s.Shutdown()
			r.events(s.DrainEvents())
			fmt.Fprintln(os.Stdout, "# interrupted")
			return nil
		case <-s.Updates():
			r.events(s.DrainEvents())
			r.table(s.LatestTable())
			published++
			if o.samples > 0 && published >= o.samples {
				return nil
			}
		}
	}
}

// loadProfiles reads path, or returns the built-in set when path is empty.
func loadProfiles(path string) (profile.Set, error) {
	if path == "" {
		return profile.Set{defaultProfile()}, nil
	}
	return profile.LoadFile(path)
}

func selectProfile(set profile.Set, name string, interval time.Duration) (profile.Profile, error) {
	p, err := set.Get(name)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("%w (available: %s)", err, strings.Join(set.Names(), ", "))
	}
	if interval > 0 {
		p.SampleInterval = interval
	}
	return p, nil
}

func defaultProfile() profile.Profile {
	return profile.Profile{
		Name:           "default",
		SampleInterval: time.Second,
		Rules: []profile.Rule{
			{
				Name: "cpu-hog", Metric: profile.MetricCPU, Operator: profile.OpGreater,
				Limit: 80, SustainedFor: 3 * time.Second,
			},
			{
				Name: "memory-hog", Metric: profile.MetricMemory, Operator: profile.OpGreater,
				Limit: float64(2 << 30), SustainedFor: 10 * time.Second,
			},
		},
	}
}

// watchProfiles swaps in the named profile whenever the file changes. A
// broken edit is logged and the running profile stays active.
func watchProfiles(path, name string, interval time.Duration, s *monitor.Sampler, log *zap.Logger) {
	pv := viper.New()
	pv.SetConfigFile(path)
	if err := pv.ReadInConfig(); err != nil {
		log.Warn("profile watch disabled", zap.String("file", path), zap.Error(err))
		return
	}
	pv.OnConfigChange(func(e fsnotify.Event) {
		set, err := profile.Decode(pv)
		if err == nil {
			var p profile.Profile
			if p, err = selectProfile(set, name, interval); err == nil {
				err = s.SwapProfile(p)
			}
		}
		switch {
		case errors.Is(err, monitor.ErrNotStarted):
		case err != nil:
			log.Warn("profile reload rejected", zap.String("file", e.Name), zap.Error(err))
		default:
			log.Info("profile reloaded", zap.String("file", e.Name), zap.String("profile", name))
		}
	})
	pv.WatchConfig()
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() <= zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
