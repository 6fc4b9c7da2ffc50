// Package trading is the public entry point of the SDK.
//
// A Client bundles the REST transport, the rate limiter, the authenticated
// WebSocket session and the order tracker behind one value built from a
// config.Config:
//
//	cfg, err := config.FromOSEnv()
//	if err != nil {
//		return err
//	}
//	c, err := trading.New(cfg, trading.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	ev, err := c.PlaceMarketOrderAndWait(ctx, order, 0)
//
// Rates and private order events are delivered through the emitters
// returned by Events.
package trading
