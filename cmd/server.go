package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/circa10a/push-timer/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Constants for Viper keys and Flag names
const (
	autoTLSKey            = "auto-tls"
	contactEmailKey       = "contact-email"
	corsAllowedOriginsKey = "cors-allowed-origins"
	databaseURLKey        = "database-url"
	deliveryRateKey       = "delivery-rate"
	domainsKey            = "domains"
	encryptionKey         = "encryption"
	logFormatKey          = "log-format"
	logLevelKey           = "log-level"
	metricsKey            = "metrics"
	notifiersKey          = "notifiers"
	portKey               = "port"
	pruneScheduleKey      = "prune-schedule"
	pushTimeoutKey        = "push-timeout"
	pushTTLKey            = "push-ttl"
	storageDirKey         = "storage-dir"
	timerRetentionKey     = "timer-retention"
	tlsCertificateKey     = "tls-certificate"
	tlsKeyKey             = "tls-key"
	vapidKeyDirKey        = "vapid-key-dir"
	vapidPrivateKeyKey    = "vapid-private-key"
	vapidPublicKeyKey     = "vapid-public-key"
	workerBatchSizeKey    = "worker-batch-size"
	workerIntervalKey     = "worker-interval"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: fmt.Sprintf("Start the %s server", project),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Build server configuration using the constants
		cfg := &server.Config{
			AutoTLS:            viper.GetBool(autoTLSKey),
			ContactEmail:       viper.GetString(contactEmailKey),
			CORSAllowedOrigins: viper.GetStringSlice(corsAllowedOriginsKey),
			DatabaseURL:        viper.GetString(databaseURLKey),
			DeliveryRate:       viper.GetFloat64(deliveryRateKey),
			Domains:            viper.GetStringSlice(domainsKey),
			EncryptionEnabled:  viper.GetBool(encryptionKey),
			LogFormat:          viper.GetString(logFormatKey),
			LogLevel:           viper.GetString(logLevelKey),
			Metrics:            viper.GetBool(metricsKey),
			Notifiers:          viper.GetStringSlice(notifiersKey),
			Port:               viper.GetInt(portKey),
			PruneSchedule:      viper.GetString(pruneScheduleKey),
			PushTimeout:        viper.GetDuration(pushTimeoutKey),
			PushTTL:            viper.GetDuration(pushTTLKey),
			StorageDir:         viper.GetString(storageDirKey),
			TimerRetention:     viper.GetDuration(timerRetentionKey),
			TLSCert:            viper.GetString(tlsCertificateKey),
			TLSKey:             viper.GetString(tlsKeyKey),
			Validation:         true,
			VAPIDKeyDir:        viper.GetString(vapidKeyDirKey),
			VAPIDPrivateKey:    viper.GetString(vapidPrivateKeyKey),
			VAPIDPublicKey:     viper.GetString(vapidPublicKeyKey),
			WorkerBatchSize:    viper.GetInt(workerBatchSizeKey),
			WorkerInterval:     viper.GetDuration(workerIntervalKey),
		}

		server, err := server.New(cfg)
		if err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		select {
		case <-stop:
		case err = <-errChan:
		}

		server.Stop()

		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverFlags := []flagDef{
		{Name: autoTLSKey, Shorthand: "a", Type: "bool", Default: false, Usage: "Enable automatic TLS via Let's Encrypt. Requires port 80/443 open to the internet for domain validation.", ViperKey: autoTLSKey},
		{Name: contactEmailKey, Shorthand: "", Type: "string", Default: "admin@push-timer.local", Usage: "Email used for TLS cert registration and as the VAPID subscriber contact.", ViperKey: contactEmailKey},
		{Name: corsAllowedOriginsKey, Shorthand: "", Type: "stringArray", Default: []string{}, Usage: "Origins allowed to call the API from a browser. CORS is disabled when empty.", ViperKey: corsAllowedOriginsKey},
		{Name: databaseURLKey, Shorthand: "", Type: "string", Default: "", Usage: "Postgres connection URL (postgres://...). SQLite in --storage-dir is used when empty.", ViperKey: databaseURLKey},
		{Name: deliveryRateKey, Shorthand: "", Type: "float64", Default: 0.0, Usage: "Maximum push deliveries per second. 0 means unlimited.", ViperKey: deliveryRateKey},
		{Name: domainsKey, Shorthand: "d", Type: "stringArray", Default: []string{}, Usage: "Domains to issue certificate for. Must be used with --auto-tls.", ViperKey: domainsKey},
		{Name: encryptionKey, Shorthand: "e", Type: "bool", Default: false, Usage: "Encrypt stored push subscription credentials. The key is kept in --storage-dir.", ViperKey: encryptionKey},
		{Name: logFormatKey, Shorthand: "f", Type: "string", Default: "text", Usage: "Server logging format. Supported values are 'text' and 'json'.", ViperKey: logFormatKey},
		{Name: logLevelKey, Shorthand: "l", Type: "string", Default: "info", Usage: "Server logging level.", ViperKey: logLevelKey},
		{Name: metricsKey, Shorthand: "m", Type: "bool", Default: false, Usage: "Enable Prometheus metrics instrumentation.", ViperKey: metricsKey},
		{Name: notifiersKey, Shorthand: "n", Type: "stringArray", Default: []string{}, Usage: "Shoutrrr URLs that receive a copy of every fired timer message.", ViperKey: notifiersKey},
		{Name: portKey, Shorthand: "p", Type: "int", Default: 8080, Usage: "Port to listen on. Cannot be used in conjunction with --auto-tls since that will require listening on 80 and 443.", ViperKey: portKey},
		{Name: pruneScheduleKey, Shorthand: "", Type: "string", Default: "@hourly", Usage: "Cron schedule for pruning notified timers. Used with --timer-retention.", ViperKey: pruneScheduleKey},
		{Name: pushTimeoutKey, Shorthand: "", Type: "duration", Default: 10 * time.Second, Usage: "Timeout for a single push delivery.", ViperKey: pushTimeoutKey},
		{Name: pushTTLKey, Shorthand: "", Type: "duration", Default: 24 * time.Hour, Usage: "How long the push service should keep an undelivered message.", ViperKey: pushTTLKey},
		{Name: storageDirKey, Shorthand: "s", Type: "string", Default: "./data", Usage: "Storage directory for the database and encryption key", ViperKey: storageDirKey},
		{Name: timerRetentionKey, Shorthand: "", Type: "duration", Default: time.Duration(0), Usage: "Delete notified timers older than this. 0 keeps them forever.", ViperKey: timerRetentionKey},
		{Name: tlsCertificateKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS certificate. Cannot be used with --auto-tls.", ViperKey: tlsCertificateKey},
		{Name: tlsKeyKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS key. Cannot be used with --auto-tls.", ViperKey: tlsKeyKey},
		{Name: vapidKeyDirKey, Shorthand: "", Type: "string", Default: "", Usage: "Directory to load VAPID keys from, generating them on first start. Ignored when keys are given directly.", ViperKey: vapidKeyDirKey},
		{Name: vapidPrivateKeyKey, Shorthand: "", Type: "string", Default: "", Usage: "VAPID private key. Push delivery is disabled without a keypair.", ViperKey: vapidPrivateKeyKey},
		{Name: vapidPublicKeyKey, Shorthand: "", Type: "string", Default: "", Usage: "VAPID public key. Push delivery is disabled without a keypair.", ViperKey: vapidPublicKeyKey},
		{Name: workerBatchSizeKey, Shorthand: "", Type: "int", Default: 100, Usage: "How many due timers to process at a time.", ViperKey: workerBatchSizeKey},
		{Name: workerIntervalKey, Shorthand: "", Type: "duration", Default: 30 * time.Second, Usage: "How often to check for expired timers.", ViperKey: workerIntervalKey},
	}

	registerFlagTypes(serverCmd, serverFlags)

	viper.SetEnvPrefix(strings.ToUpper(envVarPrefix))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, d := range serverFlags {
		_ = viper.BindPFlag(d.ViperKey, serverCmd.Flags().Lookup(d.Name))
	}

	serverCmd.Flags().VisitAll(func(f *pflag.Flag) {
		env := strings.ToUpper(envVarPrefix) + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if !strings.Contains(f.Usage, "env:") {
			f.Usage = fmt.Sprintf("%s (env: %s)", f.Usage, env)
		}
	})
}
