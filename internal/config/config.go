package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		DefaultLanguage  string `env:"LANG,default=en"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.guardbot"`
		MetricsAddr      string `env:"METRICS_ADDR,default=:2112"`

		Classifier Classifier
		Moderation Moderation
		Appeals    Appeals
		Rules      Rules
	}

	Classifier struct {
		SafeBrowsingAPIKey string        `env:"SAFEBROWSING_API_KEY,required"`
		PerspectiveAPIKey  string        `env:"PERSPECTIVE_API_KEY,required"`
		SpamThreshold      float64       `env:"SPAM_THRESHOLD,default=0.75"`
		ToxicityThreshold  float64       `env:"TOXICITY_THRESHOLD,default=0.65"`
		RequestTimeout     time.Duration `env:"CLASSIFIER_TIMEOUT,default=5s"`
	}

	Moderation struct {
		EscalationStages []time.Duration `env:"ESCALATION_STAGES,default=1h,6h,12h"`
		RateWindow       time.Duration   `env:"RATE_WINDOW,default=10s"`
		RateMaxMessages  int             `env:"RATE_MAX_MESSAGES,default=3"`
		GraceWindow      time.Duration   `env:"VERIFICATION_GRACE_WINDOW,default=5m"`
		SweepInterval    time.Duration   `env:"SWEEP_INTERVAL,default=30s"`
	}

	Appeals struct {
		ReportCooldown time.Duration `env:"REPORT_COOLDOWN,default=120s"`
		AppealCooldown time.Duration `env:"APPEAL_COOLDOWN,default=600s"`
	}

	Rules struct {
		BroadcastInterval time.Duration `env:"RULES_INTERVAL,default=10m"`
		FileName          string        `env:"RULES_FILE,default=chat_rules.txt"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		if len(cfg.Moderation.EscalationStages) == 0 {
			globalErr = fmt.Errorf("escalation stages must not be empty")
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

// VerificationPhrase is the exact phrase a pending member has to send the bot
// in a private chat to lift the join restriction, per language.
func VerificationPhrase(lang string) string {
	switch strings.ToLower(lang) {
	case "uk":
		return "я не бот"
	default:
		return "i am not a bot"
	}
}
