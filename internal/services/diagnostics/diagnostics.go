package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nabezky/VoucherBox/internal/integrations/nabezky"
)

// Stage names as they appear in the result's tests map.
const (
	StageConfiguration  = "configuration"
	StageConnectivity   = "connectivity"
	StageEndpoint       = "endpoint"
	StageAuthentication = "authentication"
)

// Config is the connector configuration slice the diagnostics validate.
type Config struct {
	Enabled         bool
	APIURL          string  `validate:"required,url"`
	MapURL          string  `validate:"required,url"`
	AccessToken     string  `validate:"required"`
	Products        []int64 `validate:"min=1"`
	DefaultRegionID int
}

// StageResult is the outcome of one executed stage.
type StageResult struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the aggregate outcome of a diagnostics run.
type Result struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message"`
	ResponseTimeMS int64                  `json:"response_time_ms"`
	Tests          map[string]StageResult `json:"tests"`
	Errors         []string               `json:"errors"`
	Warnings       []string               `json:"warnings"`
}

type Service struct {
	prober nabezky.Prober
	log    *slog.Logger
	now    func() time.Time

	validate *validator.Validate
}

func New(prober nabezky.Prober, log *slog.Logger) *Service {
	return &Service{
		prober:   prober,
		log:      log,
		now:      time.Now,
		validate: validator.New(),
	}
}

// Run выполняет все четыре стадии по порядку. Стадии 1-3 обрывают проверку,
// стадия 4 только добавляет warnings.
func (s *Service) Run(ctx context.Context, cfg Config) Result {
	start := s.now()
	res := Result{
		Tests:    map[string]StageResult{},
		Errors:   []string{},
		Warnings: []string{},
	}
	finish := func(success bool, message string) Result {
		res.Success = success
		res.Message = message
		res.ResponseTimeMS = s.now().Sub(start).Milliseconds()
		return res
	}

	// 1. configuration: собираем ВСЕ нарушения, не только первое
	cfgErrs := s.validateConfig(cfg)
	if len(cfgErrs) > 0 {
		res.Errors = append(res.Errors, cfgErrs...)
		res.Tests[StageConfiguration] = StageResult{Passed: false, Detail: fmt.Sprintf("%d configuration problem(s)", len(cfgErrs))}
		return finish(false, "configuration validation failed")
	}
	res.Tests[StageConfiguration] = StageResult{Passed: true}

	// 2. connectivity: HEAD базового URL, проходит только [200,400)
	status, err := s.prober.ProbeBase(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("connectivity probe failed: %v", err))
		res.Tests[StageConnectivity] = StageResult{Passed: false, Detail: "transport failure"}
		return finish(false, "API base URL is unreachable")
	}
	if status < 200 || status >= 400 {
		res.Errors = append(res.Errors, fmt.Sprintf("connectivity probe returned status %d", status))
		res.Tests[StageConnectivity] = StageResult{Passed: false, Detail: fmt.Sprintf("http %d", status)}
		return finish(false, "API base URL is unreachable")
	}
	res.Tests[StageConnectivity] = StageResult{Passed: true, Detail: fmt.Sprintf("http %d", status)}

	// 3. endpoint: OPTIONS пути генерации. 405 тоже считается признаком
	// существования эндпоинта, поэтому окно [200,500).
	status, err = s.prober.ProbeEndpoint(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("endpoint probe failed: %v", err))
		res.Tests[StageEndpoint] = StageResult{Passed: false, Detail: "transport failure"}
		return finish(false, "voucher endpoint is unavailable")
	}
	if status < 200 || status >= 500 {
		res.Errors = append(res.Errors, fmt.Sprintf("endpoint probe returned status %d", status))
		res.Tests[StageEndpoint] = StageResult{Passed: false, Detail: fmt.Sprintf("http %d", status)}
		return finish(false, "voucher endpoint is unavailable")
	}
	res.Tests[StageEndpoint] = StageResult{Passed: true, Detail: fmt.Sprintf("http %d", status)}

	// 4. authentication: боевой POST с тестовым payload. Никогда не валит
	// общий результат, протухший токен не равен полному отказу связи.
	status, err = s.prober.ProbeAuth(ctx, cfg.DefaultRegionID)
	switch {
	case err != nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("authentication probe failed: %v", err))
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: "transport failure"}
	case status == 200:
		res.Tests[StageAuthentication] = StageResult{Passed: true, Detail: "http 200"}
	case status == 401:
		res.Warnings = append(res.Warnings, "invalid token")
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: "http 401"}
	case status == 403:
		res.Warnings = append(res.Warnings, "forbidden")
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: "http 403"}
	case status >= 400 && status < 500:
		res.Warnings = append(res.Warnings, fmt.Sprintf("client error (http %d)", status))
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: fmt.Sprintf("http %d", status)}
	case status >= 500:
		res.Warnings = append(res.Warnings, fmt.Sprintf("server error (http %d)", status))
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: fmt.Sprintf("http %d", status)}
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unexpected response (http %d)", status))
		res.Tests[StageAuthentication] = StageResult{Passed: false, Detail: fmt.Sprintf("http %d", status)}
	}

	if len(res.Warnings) > 0 {
		s.log.Warn("diagnostics completed with warnings", "warnings", len(res.Warnings))
		return finish(true, "connection OK, authentication reported warnings")
	}
	return finish(true, "connection OK")
}

func (s *Service) validateConfig(cfg Config) []string {
	var out []string
	if !cfg.Enabled {
		out = append(out, "connector is disabled")
	}
	if err := s.validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				switch fe.Field() {
				case "APIURL":
					out = append(out, "API URL is missing or not a valid URL")
				case "MapURL":
					out = append(out, "map URL is missing or not a valid URL")
				case "AccessToken":
					out = append(out, "access token is not configured")
				case "Products":
					out = append(out, "no products are configured for voucher generation")
				default:
					out = append(out, fe.Error())
				}
			}
		} else {
			out = append(out, err.Error())
		}
	}
	return out
}
