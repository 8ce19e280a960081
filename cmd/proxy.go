package cmd

import (
	"context"

	"bizfinder/helpers"
	"bizfinder/logger"
	"bizfinder/services/proxy"
)

// resolveProxy picks the fastest endpoint from the configured proxy
// pool unless a fixed PROXY_ADDR was given, then routes both the
// browser and direct fetches through it. A pool with no working
// endpoint downgrades to a direct connection.
func resolveProxy(ctx context.Context) {
	if cfg.ProxyAddr == "" && len(cfg.ProxyList) > 0 {
		pool := proxy.NewPool(cfg.ProxyList)
		if err := pool.Probe(ctx); err != nil {
			logger.ForProxy().Warn().Err(err).Msg("Proxy pool unusable, connecting directly")
			return
		}
		if addr, err := pool.Fastest(); err == nil {
			cfg.ProxyAddr = addr
		}
	}
	if cfg.ProxyAddr == "" {
		return
	}
	if err := helpers.SetProxy(cfg.ProxyAddr); err != nil {
		logger.ForProxy().Warn().Err(err).Msg("Proxy address rejected, connecting directly")
		cfg.ProxyAddr = ""
		return
	}
	logger.ForProxy().Info().Str("proxy", cfg.ProxyAddr).Msg("Routing traffic through proxy")
}
