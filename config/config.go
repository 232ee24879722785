/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"KOLO_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"KOLO_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"KOLO_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"KOLO_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"KOLO_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"KOLO_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"KOLO_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"KOLO_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"KOLO_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	NotificationQueue      string `json:"notification_queue" envconfig:"KOLO_QUEUE_NOTIFICATION"`
	WithdrawalReleaseQueue string `json:"withdrawal_release_queue" envconfig:"KOLO_QUEUE_WITHDRAWAL_RELEASE"`
	MonitoringPort         string `json:"monitoring_port" envconfig:"KOLO_QUEUE_MONITORING_PORT"`
}

type StripeConfig struct {
	SecretKey     string `json:"secret_key" envconfig:"KOLO_STRIPE_SECRET_KEY"`
	WebhookSecret string `json:"webhook_secret" envconfig:"KOLO_STRIPE_WEBHOOK_SECRET"`
	BaseURL       string `json:"base_url" envconfig:"KOLO_STRIPE_BASE_URL"`
}

type PaystackConfig struct {
	SecretKey string `json:"secret_key" envconfig:"KOLO_PAYSTACK_SECRET_KEY"`
	BaseURL   string `json:"base_url" envconfig:"KOLO_PAYSTACK_BASE_URL"`
}

type ProvidersConfig struct {
	Stripe   StripeConfig   `json:"stripe"`
	Paystack PaystackConfig `json:"paystack"`
}

// EngineConfig tunes the contribution engine. Retries are bounded: MaxRetries
// is the number of re-dispatches after the initial attempt, so the default of
// 1 preserves fail-fast semantics (two total attempts, then disable + notify).
type EngineConfig struct {
	PlatformFeePercent      float64 `json:"platform_fee_percent" envconfig:"KOLO_ENGINE_PLATFORM_FEE_PERCENT"`
	MaxRetries              int     `json:"max_retries" envconfig:"KOLO_ENGINE_MAX_RETRIES"`
	AttemptStalenessMinutes int     `json:"attempt_staleness_minutes" envconfig:"KOLO_ENGINE_ATTEMPT_STALENESS_MINUTES"`
	WithdrawalHoldHours     int     `json:"withdrawal_hold_hours" envconfig:"KOLO_ENGINE_WITHDRAWAL_HOLD_HOURS"`
	SweepLockMinutes        int     `json:"sweep_lock_minutes" envconfig:"KOLO_ENGINE_SWEEP_LOCK_MINUTES"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"KOLO_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"KOLO_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"KOLO_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type EmailConfig struct {
	Provider    string `json:"provider" envconfig:"KOLO_EMAIL_PROVIDER"`
	APIKey      string `json:"api_key" envconfig:"KOLO_EMAIL_API_KEY"`
	Domain      string `json:"domain" envconfig:"KOLO_EMAIL_DOMAIN"`
	FromAddress string `json:"from_address" envconfig:"KOLO_EMAIL_FROM_ADDRESS"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
	Email EmailConfig  `json:"email"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"KOLO_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Providers    ProvidersConfig  `json:"providers"`
	Engine       EngineConfig     `json:"engine"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("kolo", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called kolo.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Kolo Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.WithdrawalReleaseQueue == "" {
		cnf.Queue.WithdrawalReleaseQueue = "new:withdrawal_release"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	if cnf.Providers.Stripe.BaseURL == "" {
		cnf.Providers.Stripe.BaseURL = "https://api.stripe.com"
	}
	if cnf.Providers.Paystack.BaseURL == "" {
		cnf.Providers.Paystack.BaseURL = "https://api.paystack.co"
	}

	if cnf.Engine.MaxRetries == 0 {
		cnf.Engine.MaxRetries = 1
	}
	if cnf.Engine.AttemptStalenessMinutes == 0 {
		cnf.Engine.AttemptStalenessMinutes = 60
	}
	if cnf.Engine.WithdrawalHoldHours == 0 {
		cnf.Engine.WithdrawalHoldHours = 24
	}
	if cnf.Engine.SweepLockMinutes == 0 {
		cnf.Engine.SweepLockMinutes = 30
	}
	if cnf.Engine.PlatformFeePercent == 0 {
		cnf.Engine.PlatformFeePercent = 1.0
		log.Printf("Warning: Platform fee percent not specified. Setting default value: %.1f%%", cnf.Engine.PlatformFeePercent)
	}

	if cnf.Notification.Email.Provider == "" {
		cnf.Notification.Email.Provider = "sendgrid"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Engine.MaxRetries == 0 {
		mockConfig.Engine.MaxRetries = 1
	}
	if mockConfig.Engine.AttemptStalenessMinutes == 0 {
		mockConfig.Engine.AttemptStalenessMinutes = 60
	}
	if mockConfig.Engine.WithdrawalHoldHours == 0 {
		mockConfig.Engine.WithdrawalHoldHours = 24
	}
	if mockConfig.Engine.SweepLockMinutes == 0 {
		mockConfig.Engine.SweepLockMinutes = 30
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
