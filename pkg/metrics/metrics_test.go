package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/pkg/odm"
)

var _ odm.Observer = Observer{}

func TestObserverCountsEvents(t *testing.T) {
	odm.SetObserver(Observer{})
	t.Cleanup(func() { odm.SetObserver(nil) })

	c := odm.NewDocument("MetricsDoc").
		Field("name", odm.String()).
		Field("age", odm.Int(odm.Optional())).
		MustBuild()

	_, err := c.FromData(map[string]any{"name": "a"})
	require.NoError(t, err)
	_, err = c.FromData(map[string]any{"age": "x"})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(DocumentsConstructed.WithLabelValues("MetricsDoc")))
	require.Equal(t, 1.0, testutil.ToFloat64(ValidationFailures.WithLabelValues("MetricsDoc", "name")))
	require.Equal(t, 1.0, testutil.ToFloat64(ValidationFailures.WithLabelValues("MetricsDoc", "age")))

	c.FromWire(bson.D{{Key: "age", Value: "not a number"}})
	require.Equal(t, 1.0, testutil.ToFloat64(WireValuesDropped.WithLabelValues("MetricsDoc", "age")))
}

func TestObserveStore(t *testing.T) {
	ObserveStore("memory", "insert", nil)
	ObserveStore("memory", "insert", errors.New("boom"))
	require.Equal(t, 1.0, testutil.ToFloat64(StoreOperations.WithLabelValues("memory", "insert", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(StoreOperations.WithLabelValues("memory", "insert", "error")))
}

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	require.Panics(t, func() { RegisterCollectors(reg) }, "double registration")
}
