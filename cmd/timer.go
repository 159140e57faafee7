package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/circa10a/push-timer/api"
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	apiURL       string
	outputFormat string
	useColor     bool
	client       *api.Client
)

func initClient() error {
	var err error

	httpClient := &http.Client{
		Timeout: 5 * time.Second,
	}

	client, err = api.NewClient(apiURL, api.WithHTTPClient(httpClient))
	return err
}

// formatOutput handles conversion and writing to the command's designated output
func formatOutput(cmd *cobra.Command, data interface{}, isError bool) {
	if !useColor {
		color.NoColor = true
	} else {
		color.NoColor = false
	}

	var out string

	switch outputFormat {
	case "yaml":
		b, _ := yaml.Marshal(data)
		if useColor {
			if isError {
				out = color.RedString(string(b))
			} else {
				out = color.CyanString(string(b))
			}
		} else {
			out = string(b)
		}

	case "json":
		fallthrough
	default:
		if useColor {
			b, _ := prettyjson.Marshal(data)
			out = string(b)
		} else {
			b, _ := json.MarshalIndent(data, "", "  ")
			out = string(b)
		}
	}

	cmd.Println(out)
}

// dumpResponse handles formatting success data or API error models
func dumpResponse[T any](cmd *cobra.Command, resp *api.Response[T]) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		formatOutput(cmd, resp.JSON, false)
		return
	}

	// Handle Errors: Try to parse structured API error first
	var apiErr api.Error
	if err := json.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Message != "" {
		formatOutput(cmd, apiErr, true)
		return
	}

	// Fallback: Print raw body or just the status code
	if len(resp.Body) > 0 {
		if useColor {
			_, _ = color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), string(resp.Body))
		} else {
			cmd.PrintErrln(string(resp.Body))
		}
	} else {
		cmd.PrintErrf("Error: Received status code %d\n", resp.StatusCode)
	}
}

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage push subscriptions and timers on a running server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient()
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Register a push subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("endpoint")
		p256dh, _ := cmd.Flags().GetString("p256dh")
		auth, _ := cmd.Flags().GetString("auth")

		resp, err := client.Subscribe(context.Background(), api.SubscribeRequest{
			Subscription: api.PushSubscription{
				Endpoint: endpoint,
				Keys:     api.PushKeys{P256dh: p256dh, Auth: auth},
			},
		})
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp)
		return nil
	},
}

var startTimerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timer for a registered subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("endpoint")
		minutes, _ := cmd.Flags().GetInt("minutes")
		message, _ := cmd.Flags().GetString("message")

		body := api.StartTimerRequest{
			Subscription: api.SubscriptionRef{Endpoint: endpoint},
			Minutes:      &minutes,
			Message:      message,
		}

		if cmd.Flags().Changed("client-id") {
			clientID, _ := cmd.Flags().GetString("client-id")
			body.ClientID = &clientID
		}

		resp, err := client.StartTimer(context.Background(), body)
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp)
		return nil
	},
}

var listTimersCmd = &cobra.Command{
	Use:   "list",
	Short: "List the timers of a subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("endpoint")

		resp, err := client.ListTimers(context.Background(), endpoint)
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp)
		return nil
	},
}

var cancelTimerCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a single timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("id")

		resp, err := client.CancelTimer(context.Background(), id)
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp)
		return nil
	},
}

var cancelAllTimersCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Cancel every timer of a subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("endpoint")

		resp, err := client.CancelAllTimers(context.Background(), endpoint)
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp)
		return nil
	},
}

func init() {
	timerCmd.PersistentFlags().StringVarP(&apiURL, "url", "u", "http://localhost:8080", "API base URL")
	timerCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	timerCmd.PersistentFlags().BoolVar(&useColor, "color", true, "Enable colorized output")

	for _, c := range []*cobra.Command{subscribeCmd, startTimerCmd, listTimersCmd, cancelAllTimersCmd} {
		c.Flags().StringP("endpoint", "e", "", "Push subscription endpoint")
		_ = c.MarkFlagRequired("endpoint")
	}

	subscribeCmd.Flags().String("p256dh", "", "Subscription p256dh key")
	subscribeCmd.Flags().String("auth", "", "Subscription auth secret")
	_ = subscribeCmd.MarkFlagRequired("p256dh")
	_ = subscribeCmd.MarkFlagRequired("auth")

	startTimerCmd.Flags().IntP("minutes", "t", 0, "Minutes until the timer fires")
	startTimerCmd.Flags().StringP("message", "m", "", "Notification message")
	startTimerCmd.Flags().StringP("client-id", "c", "", "Tag identifying the timer. Starting a timer with the same tag replaces it")
	_ = startTimerCmd.MarkFlagRequired("minutes")
	_ = startTimerCmd.MarkFlagRequired("message")

	cancelTimerCmd.Flags().Int64("id", 0, "Timer ID")
	_ = cancelTimerCmd.MarkFlagRequired("id")

	timerCmd.AddCommand(subscribeCmd, startTimerCmd, listTimersCmd, cancelTimerCmd, cancelAllTimersCmd)
	rootCmd.AddCommand(timerCmd)
}
