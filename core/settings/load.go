package settings

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"prefork/core/directive"
	"prefork/core/utils"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Load reads and validates the directive file at path.
func Load(path string) (*ServerSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and validates directives from r.
func Parse(r io.Reader) (*ServerSettings, error) {
	directives, err := directive.Parse(r)
	if err != nil {
		cerr := &ConfigError{Reason: err.Error(), Err: err}
		var syn *directive.SyntaxError
		if errors.As(err, &syn) {
			cerr.Line = syn.Line
			cerr.Reason = syn.Msg
		}
		return nil, cerr
	}
	return Apply(directives)
}

// Apply validates already parsed directives.
func Apply(directives []directive.Directive) (*ServerSettings, error) {
	b := newBuilder()

	var result *multierror.Error
	for _, d := range directives {
		handler, ok := handlers[d.Name]
		if !ok {
			result = multierror.Append(result, &ConfigError{Directive: d.Name, Line: d.Line, Reason: "unknown directive"})
			continue
		}
		if err := handler(b, d); err != nil {
			result = multierror.Append(result, &ConfigError{Directive: d.Name, Line: d.Line, Reason: err.Error(), Err: err})
		}
	}

	b.finish()

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return b.s, nil
}

// builder accumulates directive values before derived defaults are applied.
type builder struct {
	s             *ServerSettings
	bootTimeout   bool
	explicitToken bool
}

func newBuilder() *builder {
	metricsURL, _ := url.Parse(DefaultMetricsURL)
	return &builder{
		s: &ServerSettings{
			port:                  DefaultPort,
			metricsURL:            *metricsURL,
			workerTimeout:         DefaultWorkerTimeout,
			workerShutdownTimeout: DefaultWorkerShutdownTimeout,
			minThreads:            DefaultMinThreads,
			maxThreads:            DefaultMaxThreads,
			environment:           DefaultEnvironment,
		},
	}
}

type handlerFunc func(b *builder, d directive.Directive) error

var handlers map[string]handlerFunc

func init() {
	handlers = map[string]handlerFunc{
		"port":                    (*builder).port,
		"workers":                 (*builder).workers,
		"preload_app!":            (*builder).preloadBang,
		"preload_app":             (*builder).preload,
		"activate_control_app":    (*builder).controlApp,
		"plugin":                  (*builder).plugin,
		"metrics_url":             (*builder).metricsURL,
		"threads":                 (*builder).threads,
		"worker_timeout":          (*builder).workerTimeout,
		"worker_boot_timeout":     (*builder).workerBootTimeout,
		"worker_shutdown_timeout": (*builder).workerShutdownTimeout,
		"environment":             (*builder).environment,
		"tag":                     (*builder).tag,
	}
}

func arity(d directive.Directive, min, max int) error {
	n := len(d.Args)
	if n < min || n > max {
		if min == max {
			return fmt.Errorf("expects %d argument(s), got %d", min, n)
		}
		return fmt.Errorf("expects %d to %d arguments, got %d", min, max, n)
	}
	return nil
}

func (b *builder) port(d directive.Directive) error {
	if err := arity(d, 1, 1); err != nil {
		return err
	}
	p, err := utils.ToInt(d.Args[0])
	if err != nil {
		return err
	}
	if err := validPort(p); err != nil {
		return err
	}
	b.s.port = p
	return nil
}

func (b *builder) workers(d directive.Directive) error {
	if err := arity(d, 1, 1); err != nil {
		return err
	}
	n, err := utils.ToInt(d.Args[0])
	if err != nil {
		return err
	}
	if n < 0 || n > MaxWorkers {
		return fmt.Errorf("worker count must be between 0 and %d, got %d", MaxWorkers, n)
	}
	b.s.workerCount = n
	return nil
}

func (b *builder) preloadBang(d directive.Directive) error {
	if err := arity(d, 0, 0); err != nil {
		return err
	}
	b.s.preloadApp = true
	return nil
}

func (b *builder) preload(d directive.Directive) error {
	if err := arity(d, 0, 1); err != nil {
		return err
	}
	if len(d.Args) == 0 {
		b.s.preloadApp = true
		return nil
	}
	v, err := utils.ToBool(d.Args[0])
	if err != nil {
		return err
	}
	b.s.preloadApp = v
	return nil
}

func (b *builder) controlApp(d directive.Directive) error {
	if err := arity(d, 1, 2); err != nil {
		return err
	}
	raw, err := utils.ToString(d.Args[0])
	if err != nil {
		return err
	}
	u, err := parseTCPURL(raw)
	if err != nil {
		return err
	}

	auth := AuthToken
	token := ""
	dataOnly := false
	if len(d.Args) == 2 {
		opts, ok := d.Args[1].(map[string]any)
		if !ok {
			return fmt.Errorf("options must be a hash, got %T", d.Args[1])
		}
		for _, key := range sortedKeys(opts) {
			switch key {
			case "no_token":
				v, err := utils.ToBool(opts[key])
				if err != nil {
					return fmt.Errorf("no_token: %w", err)
				}
				if v {
					auth = AuthNoToken
				}
			case "auth_token":
				v, err := utils.ToString(opts[key])
				if err != nil {
					return fmt.Errorf("auth_token: %w", err)
				}
				if v == "" {
					return fmt.Errorf("auth_token must not be empty")
				}
				token = v
			case "data_only":
				v, err := utils.ToBool(opts[key])
				if err != nil {
					return fmt.Errorf("data_only: %w", err)
				}
				dataOnly = v
			default:
				return fmt.Errorf("unknown option %q", key)
			}
		}
	}
	if auth == AuthNoToken && token != "" {
		return fmt.Errorf("no_token and auth_token are mutually exclusive")
	}

	b.s.controlURL = &u
	b.s.controlAuth = auth
	b.s.controlToken = token
	b.s.controlDataOnly = dataOnly
	b.explicitToken = token != ""
	return nil
}

func (b *builder) plugin(d directive.Directive) error {
	if err := arity(d, 1, 1); err != nil {
		return err
	}
	name, err := utils.ToString(d.Args[0])
	if err != nil {
		return err
	}
	if !slices.Contains(KnownPlugins, name) {
		return fmt.Errorf("unknown plugin %q (known: %s)", name, strings.Join(KnownPlugins, ", "))
	}
	if !slices.Contains(b.s.plugins, name) {
		b.s.plugins = append(b.s.plugins, name)
	}
	return nil
}

func (b *builder) metricsURL(d directive.Directive) error {
	if err := arity(d, 1, 1); err != nil {
		return err
	}
	raw, err := utils.ToString(d.Args[0])
	if err != nil {
		return err
	}
	u, err := parseTCPURL(raw)
	if err != nil {
		return err
	}
	b.s.metricsURL = u
	return nil
}

func (b *builder) threads(d directive.Directive) error {
	if err := arity(d, 1, 2); err != nil {
		return err
	}
	min, err := utils.ToInt(d.Args[0])
	if err != nil {
		return err
	}
	max := min
	if len(d.Args) == 2 {
		if max, err = utils.ToInt(d.Args[1]); err != nil {
			return err
		}
	}
	if min < 0 {
		return fmt.Errorf("minimum threads must be >= 0, got %d", min)
	}
	if max < 1 {
		return fmt.Errorf("maximum threads must be >= 1, got %d", max)
	}
	if min > max {
		return fmt.Errorf("minimum threads (%d) exceeds maximum (%d)", min, max)
	}
	b.s.minThreads, b.s.maxThreads = min, max
	return nil
}

func (b *builder) workerTimeout(d directive.Directive) error {
	v, err := seconds(d)
	if err != nil {
		return err
	}
	b.s.workerTimeout = v
	return nil
}

func (b *builder) workerBootTimeout(d directive.Directive) error {
	v, err := seconds(d)
	if err != nil {
		return err
	}
	b.s.workerBootTimeout = v
	b.bootTimeout = true
	return nil
}

func (b *builder) workerShutdownTimeout(d directive.Directive) error {
	v, err := seconds(d)
	if err != nil {
		return err
	}
	b.s.workerShutdownTimeout = v
	return nil
}

func (b *builder) environment(d directive.Directive) error {
	v, err := nonEmptyString(d)
	if err != nil {
		return err
	}
	b.s.environment = v
	return nil
}

func (b *builder) tag(d directive.Directive) error {
	v, err := nonEmptyString(d)
	if err != nil {
		return err
	}
	b.s.tag = v
	return nil
}

// finish applies derived defaults.
func (b *builder) finish() {
	if !b.bootTimeout {
		b.s.workerBootTimeout = b.s.workerTimeout
	}
	if b.s.controlURL != nil && b.s.controlAuth == AuthToken && !b.explicitToken {
		b.s.controlToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}

func validPort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("port %d out of range 1..65535", p)
	}
	return nil
}

// parseTCPURL accepts tcp://host:port and nothing else.
func parseTCPURL(raw string) (url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, fmt.Errorf("malformed URL %q", raw)
	}
	if u.Scheme != "tcp" {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "(none)"
		}
		return url.URL{}, fmt.Errorf("unsupported scheme %s in %q, only tcp:// is accepted", scheme, raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.User != nil {
		return url.URL{}, fmt.Errorf("URL %q must be of the form tcp://host:port", raw)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return url.URL{}, fmt.Errorf("URL %q must include host and port", raw)
	}
	if host == "" {
		return url.URL{}, fmt.Errorf("URL %q has an empty host", raw)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return url.URL{}, fmt.Errorf("URL %q has a non-numeric port", raw)
	}
	if err := validPort(p); err != nil {
		return url.URL{}, err
	}
	return url.URL{Scheme: "tcp", Host: u.Host}, nil
}

func seconds(d directive.Directive) (time.Duration, error) {
	if err := arity(d, 1, 1); err != nil {
		return 0, err
	}
	n, err := utils.ToInt(d.Args[0])
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("timeout must be a positive number of seconds, got %d", n)
	}
	return time.Duration(n) * time.Second, nil
}

func nonEmptyString(d directive.Directive) (string, error) {
	if err := arity(d, 1, 1); err != nil {
		return "", err
	}
	v, err := utils.ToString(d.Args[0])
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("value must not be empty")
	}
	return v, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
