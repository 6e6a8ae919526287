package configloader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/validation"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

// Params 控制配置加载的输入参数。
type Params struct {
	ConfPath string
}

const (
	defaultConfPath = "configs/config.yaml"
	envConfPath     = "CONF_PATH"

	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envEnvironment    = "APP_ENV"

	defaultServiceName    = "engagement"
	defaultServiceVersion = "dev"
	defaultEnvironment    = "development"
)

var envFileNames = []string{".env.local", ".env"}

// envOverride 描述一个环境变量对 bootstrap 的覆盖规则，值为空时跳过。
type envOverride struct {
	key   string
	apply func(b *bootstrap, value string) error
}

var envOverrides = []envOverride{
	{key: "DATABASE_URL", apply: func(b *bootstrap, v string) error {
		b.Data.Postgres.DSN = v
		return nil
	}},
	{key: "PORT", apply: func(b *bootstrap, v string) error {
		b.Server.HTTP.Addr = withPort(b.Server.HTTP.Addr, v)
		return nil
	}},
	{key: "ENGAGEMENT_ADMIN_USER_IDS", apply: func(b *bootstrap, v string) error {
		b.Server.AdminUserIDs = splitList(v)
		return nil
	}},
	{key: "ENGAGEMENT_TRUSTED_PROXY_HOPS", apply: func(b *bootstrap, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ENGAGEMENT_TRUSTED_PROXY_HOPS: %w", err)
		}
		b.Server.TrustedHops = n
		return nil
	}},
	{key: "ENGAGEMENT_DISPATCHER_WORKERS", apply: func(b *bootstrap, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ENGAGEMENT_DISPATCHER_WORKERS: %w", err)
		}
		b.Engagement.Dispatcher.Workers = n
		return nil
	}},
	{key: "ENGAGEMENT_MAINTENANCE_ENABLED", apply: func(b *bootstrap, v string) error {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENGAGEMENT_MAINTENANCE_ENABLED: %w", err)
		}
		b.Maintenance.Enabled = enabled
		return nil
	}},
}

// Load 依次加载 .env、YAML 与环境变量覆盖，校验后返回归一化的 RuntimeConfig。
func Load(params Params) (RuntimeConfig, error) {
	confPath := confPathFrom(params.ConfPath)
	if err := overloadEnvFiles(confPath); err != nil {
		return RuntimeConfig{}, fmt.Errorf("load env files: %w", err)
	}

	b, err := loadBootstrap(confPath)
	if err != nil {
		return RuntimeConfig{}, err
	}

	runtime := toRuntime(b)
	runtime.Service = serviceInfoFromEnv()
	fillDefaults(&runtime)
	return runtime, nil
}

func confPathFrom(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv(envConfPath); fromEnv != "" {
		return fromEnv
	}
	return defaultConfPath
}

// overloadEnvFiles 在配置所在目录与工作目录中查找 .env 文件，后加载的覆盖先加载的。
func overloadEnvFiles(confPath string) error {
	var files []string
	for _, dir := range envSearchDirs(confPath) {
		for _, name := range envFileNames {
			fp := filepath.Join(dir, name)
			if _, err := os.Stat(fp); err != nil || slices.Contains(files, fp) {
				continue
			}
			files = append(files, fp)
		}
	}
	if len(files) == 0 {
		return nil
	}
	return godotenv.Overload(files...)
}

func envSearchDirs(confPath string) []string {
	var dirs []string
	if info, err := os.Stat(confPath); err == nil {
		dir := confPath
		if !info.IsDir() {
			dir = filepath.Dir(confPath)
		}
		dirs = append(dirs, filepath.Clean(dir))
	}
	if cwd, err := os.Getwd(); err == nil && !slices.Contains(dirs, filepath.Clean(cwd)) {
		dirs = append(dirs, filepath.Clean(cwd))
	}
	return dirs
}

func loadBootstrap(confPath string) (*bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("load config %q: %w", confPath, err)
	}
	defer c.Close()

	var b bootstrap
	if err := c.Scan(&b); err != nil {
		return nil, fmt.Errorf("scan config %q: %w", confPath, err)
	}
	for _, o := range envOverrides {
		value := strings.TrimSpace(os.Getenv(o.key))
		if value == "" {
			continue
		}
		if err := o.apply(&b, value); err != nil {
			return nil, fmt.Errorf("env override: %w", err)
		}
	}
	if err := validation.Struct(&b); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &b, nil
}

func serviceInfoFromEnv() ServiceInfo {
	info := ServiceInfo{
		Name:        os.Getenv(envServiceName),
		Version:     os.Getenv(envServiceVersion),
		Environment: normalizeEnvironment(os.Getenv(envEnvironment)),
		InstanceID:  "unknown-instance",
	}
	if info.Name == "" {
		info.Name = defaultServiceName
	}
	if info.Version == "" {
		info.Version = defaultServiceVersion
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		info.InstanceID = host
	}
	return info
}

func normalizeEnvironment(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "dev", "development":
		return defaultEnvironment
	case "prod", "production":
		return "production"
	default:
		return raw
	}
}

// withPort 保留监听地址的主机部分，只替换端口。
func withPort(addr, port string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ":" + port
	}
	return net.JoinHostPort(host, port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
