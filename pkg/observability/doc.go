/*
Package observability turns guest and host lifecycle hooks into logs and
Prometheus metrics.

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.ComposeHooks(
		observability.LoggingHooks(logger),
		metrics.Hooks(),
	)
	s, err := session.New(frame, source, session.WithLifecycleHooks(hooks))
*/
package observability
