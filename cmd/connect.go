package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/eventsocket/client"
	"github.com/luma/eventsocket/internal/env"
	"github.com/luma/eventsocket/internal/httpapi"
	"github.com/luma/eventsocket/protocol"
)

var (
	connectHost     string
	connectPort     int
	connectPassword string
	connectHTTPPort string
)

func init() {
	flags := ConnectCmd.PersistentFlags()

	flags.StringVarP(&connectHost, "host", "a", "", "FreeSWITCH host (falls back to EVENTSOCKET_HOST)")
	flags.IntVarP(&connectPort, "port", "p", 0, "Event socket port (falls back to EVENTSOCKET_PORT)")
	flags.StringVar(&connectPassword, "password", "", "Event socket password (falls back to EVENTSOCKET_PASSWORD)")
	flags.StringVar(&connectHTTPPort, "http-port", "", "Debug HTTP server port (falls back to EVENTSOCKET_HTTP_PORT)")
}

var ConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Dial FreeSWITCH, authenticate, and stream events to stdout",
	Long: `Dial FreeSWITCH, authenticate, and stream events to stdout

Usage
	eventsocket connect
`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer stop()

		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		applyConnectFlags(conf)

		ready := make(chan struct{}, 1)
		conn, errCh := client.StartLink(client.Config{
			Name:     "connect",
			Host:     conf.Host,
			Port:     conf.Port,
			Password: conf.Password,
			Ready:    ready,
			Log:      log,
		})
		defer conn.Stop()

		select {
		case <-ready:
			log.Info("authenticated", zap.String("host", conf.Host), zap.Int("port", conf.Port))
		case err := <-errCh:
			return fmt.Errorf("connect failed: %w", err)
		case <-ctx.Done():
			return nil
		}

		if _, err := conn.Event(ctx, "plain", "ALL"); err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}

		sub, err := conn.StartListening(ctx, nil)
		if err != nil {
			return fmt.Errorf("listening for events: %w", err)
		}
		defer sub.Stop()

		var srv *http.Server
		if conf.DebugHTTP {
			router := httpapi.NewRouter(true, log, map[string]*client.Conn{"connect": conn})
			srv = &http.Server{Addr: ":" + conf.HTTPPort, Handler: router}

			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server errored", zap.Error(err))
				}
			}()

			log.Info("debug http server listening", zap.String("port", conf.HTTPPort))
		}

		defer func() {
			if srv == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				log.Warn("http server forced to shutdown", zap.Error(serr))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-conn.Done():
				return conn.Err()
			case pkt, ok := <-sub.Events():
				if !ok {
					return nil
				}
				printEvent(pkt)
			}
		}
	},
}

func applyConnectFlags(conf *env.Config) {
	if connectHost != "" {
		conf.Host = connectHost
	}
	if connectPort != 0 {
		conf.Port = connectPort
	}
	if connectPassword != "" {
		conf.Password = connectPassword
	}
	if connectHTTPPort != "" {
		conf.HTTPPort = connectHTTPPort
	}
}

func printEvent(pkt *protocol.Packet) {
	name := pkt.Field("Event-Name")
	if name == "" {
		name = string(pkt.Type)
	}
	fmt.Println(name)
}
