package ircbridge

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"gopkg.in/irc.v4"

	"agentloop/internal"
	"agentloop/internal/config"
	"agentloop/internal/logger"
)

// Run connects to the configured server and serves the bridge until ctx is
// cancelled, reconnecting after every disconnect.
func Run(ctx context.Context, cfg config.IRCConfig, bridge *Bridge) error {
	if err := config.ValidateIRC(&cfg); err != nil {
		return err
	}
	defer bridge.Wait()

	reconnectDelay := time.Duration(internal.DEFAULT_RECONNECT_DELAY) * time.Second
	connectionTimeout := time.Duration(internal.DEFAULT_CONNECT_TIMEOUT) * time.Second

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Exiting connection loop due to shutdown signal.")
			return nil
		default:
		}

		logger.Infof("Attempting to connect to IRC server at %s...", cfg.Server)
		conn, err := dial(ctx, cfg, connectionTimeout)
		if err != nil {
			logger.Errorf("Failed to connect: %v. Retrying in %s...", err, reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return nil
			}
			continue
		}

		client := irc.NewClient(conn, irc.ClientConfig{
			Nick:          cfg.Nick,
			User:          cfg.User,
			Name:          cfg.RealName,
			PingFrequency: time.Minute,
			PingTimeout:   2 * time.Minute,
			Handler:       bridge.Handler(ctx),
		})

		runErrCh := make(chan error, 1)
		go func() {
			runErrCh <- client.Run()
		}()

		select {
		case <-ctx.Done():
			logger.Infof("Shutdown requested, closing connection.")
			if err := conn.Close(); err != nil {
				logger.Errorf("Error closing connection: %v", err)
			}
			if err := <-runErrCh; err != nil {
				logger.Debugf("client.Run terminated with error: %v", err)
			}
			return nil
		case err := <-runErrCh:
			if err != nil {
				logger.Errorf("IRC client disconnected: %v", err)
			}
		}

		if err := conn.Close(); err != nil {
			logger.Debugf("Error closing connection: %v", err)
		}

		logger.Warnf("Reconnecting in %s...", reconnectDelay)
		if !sleep(ctx, reconnectDelay) {
			return nil
		}
	}
}

func dial(ctx context.Context, cfg config.IRCConfig, timeout time.Duration) (net.Conn, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if cfg.TLS {
		dialer := tls.Dialer{}
		return dialer.DialContext(connectCtx, "tcp", cfg.Server)
	}
	dialer := net.Dialer{}
	return dialer.DialContext(connectCtx, "tcp", cfg.Server)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
