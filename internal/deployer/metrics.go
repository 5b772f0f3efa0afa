package deployer

import "github.com/prometheus/client_golang/prometheus"

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubedeploy",
			Name:      "deploy_steps_total",
			Help:      "Pipeline steps executed, by step label and result",
		},
		[]string{"step", "result"},
	)

	modelsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cubedeploy",
			Name:      "models",
			Help:      "Models in the persisted manifest",
		},
	)
)

func init() {
	prometheus.MustRegister(stepsTotal, modelsGauge)
}

func observeStep(step string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	stepsTotal.WithLabelValues(step, result).Inc()
}
