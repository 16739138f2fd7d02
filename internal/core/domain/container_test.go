package domain

import (
	"encoding/json"
	"slices"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestActualContainersSortedAndUnique(t *testing.T) {
	set := NewActualContainers(
		ActualContainer{ContainerID: "c2", ServiceConfigHash: "h1", ServiceName: "web"},
		ActualContainer{ContainerID: "c1", ServiceConfigHash: "h2", ServiceName: "db"},
		ActualContainer{ContainerID: "c2", ServiceConfigHash: "h1", ServiceName: "web"},
		ActualContainer{ContainerID: "c1", ServiceConfigHash: "h1", ServiceName: "web"},
	)

	assert.Check(t, is.Equal(set.Len(), 3))
	assert.Check(t, is.DeepEqual(slices.Collect(set.All()), []ActualContainer{
		{ContainerID: "c1", ServiceConfigHash: "h1", ServiceName: "web"},
		{ContainerID: "c1", ServiceConfigHash: "h2", ServiceName: "db"},
		{ContainerID: "c2", ServiceConfigHash: "h1", ServiceName: "web"},
	}))
}

func TestActualContainersInsert(t *testing.T) {
	var set ActualContainers
	c := ActualContainer{ContainerID: "b", ServiceConfigHash: "h", ServiceName: "web"}

	assert.Check(t, set.Insert(c))
	assert.Check(t, !set.Insert(c))
	assert.Check(t, set.Insert(ActualContainer{ContainerID: "a", ServiceConfigHash: "h", ServiceName: "web"}))
	assert.Check(t, is.Equal(set.Len(), 2))
	assert.Check(t, is.Equal(slices.Collect(set.All())[0].ContainerID, "a"))
}

func TestActualContainersByService(t *testing.T) {
	set := NewActualContainers(
		ActualContainer{ContainerID: "c3", ServiceConfigHash: "h", ServiceName: "web"},
		ActualContainer{ContainerID: "c1", ServiceConfigHash: "h", ServiceName: "web"},
		ActualContainer{ContainerID: "c2", ServiceConfigHash: "h", ServiceName: "db"},
	)

	groups := set.ByService()
	assert.Check(t, is.Len(groups, 2))
	assert.Check(t, is.Equal(groups["web"][0].ContainerID, "c1"))
	assert.Check(t, is.Equal(groups["web"][1].ContainerID, "c3"))
}

func TestActualContainersMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(ActualContainers{})
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(data), "[]"))
}

func TestUpdateOrderText(t *testing.T) {
	var order UpdateOrder
	assert.NilError(t, order.UnmarshalText([]byte("start-first")))
	assert.Check(t, is.Equal(order, StartFirst))
	assert.NilError(t, order.UnmarshalText([]byte("")))
	assert.Check(t, is.Equal(order, StopFirst))
	assert.Check(t, is.ErrorContains(order.UnmarshalText([]byte("sideways")), "invalid update order"))
}

func TestChangeJSON(t *testing.T) {
	data, err := json.Marshal(Add("web", "h1"))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(data), `{"kind":"add","service_name":"web","service_config_hash":"h1"}`))

	var change ServiceContainerChange
	assert.NilError(t, json.Unmarshal([]byte(`{"kind":"remove","container_id":"c1","service_name":"web","service_config_hash":"h0"}`), &change))
	assert.Check(t, is.DeepEqual(change, Remove(ActualContainer{ContainerID: "c1", ServiceConfigHash: "h0", ServiceName: "web"})))
}
