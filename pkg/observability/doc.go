/*
Package observability exports session activity as Prometheus metrics.

Metrics plug into sessions through domain.Hooks:

	m := observability.NewMetrics()
	m.MustRegister(prometheus.DefaultRegisterer)
	mgr := session.NewManager(bp, session.WithSessionOptions(session.WithHooks(m.Hooks())))
*/
package observability
