package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/catalog-hub/catalog-hub/internal/cache"
	"github.com/catalog-hub/catalog-hub/internal/catalog"
	"github.com/catalog-hub/catalog-hub/internal/config"
	"github.com/catalog-hub/catalog-hub/internal/logging"
	"github.com/catalog-hub/catalog-hub/internal/metrics"
	"github.com/catalog-hub/catalog-hub/internal/proxy"
	"github.com/catalog-hub/catalog-hub/internal/server"
	"github.com/catalog-hub/catalog-hub/internal/server/routes"
	"github.com/catalog-hub/catalog-hub/internal/upstream"
	"github.com/catalog-hub/catalog-hub/internal/userstore"
	"github.com/catalog-hub/catalog-hub/internal/version"
)

const configEnvVar = "CATALOG_HUB_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := summaryFields("check_config", opts.configPath, cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := summaryFields("startup", opts.configPath, cfg)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“指标 → 缓存 → 上游客户端 → catalog → 用户存储 → Fiber”顺序装配，
// 保证所有请求共享同一份缓存与上游连接池。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	m := metrics.New()
	responses := cache.NewMemory[*catalog.ProviderTop](cfg.EffectiveCacheTTL())

	client, err := upstream.New(upstream.Options{
		HTTPClient:      server.NewUpstreamClient(cfg),
		BaseURL:         cfg.Upstream.BaseURL,
		APIKey:          cfg.Upstream.APIKey,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerCooldown: cfg.Upstream.BreakerCooldown.DurationValue(),
		Metrics:         m,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("构建上游客户端失败: %w", err)
	}

	svc, err := catalog.NewService(catalog.Options{
		Upstream:       client,
		Cache:          responses,
		DefaultRegion:  cfg.Upstream.DefaultRegion,
		CoalesceMisses: cfg.Global.CoalesceMisses,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("构建 catalog 服务失败: %w", err)
	}

	users, err := userstore.NewStore(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化用户数据目录失败: %w", err)
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnostics(app, routes.DiagnosticsOptions{
		Cache:         responses,
		Metrics:       m,
		UpstreamHost:  cfg.Upstream.Host(),
		DefaultRegion: svc.DefaultRegion(),
		StartedAt:     time.Now(),
	})
	proxy.NewHandler(svc, users, logger).Register(app)
	return app, nil
}

func summaryFields(action, configPath string, cfg *config.Config) logrus.Fields {
	fields := logging.BaseFields(action, configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["upstream_host"] = cfg.Upstream.Host()
	fields["default_region"] = cfg.Upstream.DefaultRegion
	fields["cache_ttl"] = cfg.EffectiveCacheTTL().String()
	fields["coalesce_misses"] = cfg.Global.CoalesceMisses
	fields["breaker"] = cfg.Upstream.BreakerEnabled()
	return fields
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("catalog-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 "+configEnvVar+" 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnvVar)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
