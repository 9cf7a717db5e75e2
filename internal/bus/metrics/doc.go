// Package metrics exports dispatch engine activity to Prometheus.
//
// A Recorder implements bus.Recorder and is attached to engines with
// bus.WithRecorder. One Recorder may serve every engine of a tree; series
// are labelled by engine name.
//
//	reg := metrics.NewRegistry()
//	rec, err := metrics.New(reg, "cascade")
//	if err != nil {
//		return err
//	}
//	engine := bus.New(bus.WithEngineName("ui"), bus.WithRecorder(rec))
//
//	srv := metrics.NewServer(":9090", reg)
//	go srv.Start()
//	defer srv.Stop(context.Background())
package metrics
