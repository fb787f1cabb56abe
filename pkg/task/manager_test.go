package task

import (
	"testing"
	"time"
)

func waitDone(t *testing.T, m *Manager) map[any]any {
	t.Helper()
	select {
	case <-m.Done():
		return m.Results()
	case <-time.After(2 * time.Second):
		t.Fatal("manager never finished")
		return nil
	}
}

func TestEmptyDatasourceFinishesImmediately(t *testing.T) {
	m := New(map[any]any{})
	task := m.NextTask()
	if task.Kind != KindDisconnect {
		t.Fatalf("got kind %v, want disconnect", task.Kind)
	}
	results := waitDone(t, m)
	if len(results) != 0 {
		t.Fatalf("got %v, want empty", results)
	}
}

func TestSingleInputPairRoundTrip(t *testing.T) {
	m := New(map[any]any{int64(0): "x"}, WithReportInterval(0))

	mapTask := m.NextTask()
	if mapTask.Kind != KindMap || mapTask.Key != int64(0) || mapTask.Value != "x" {
		t.Fatalf("got %+v", mapTask)
	}
	m.MapDone(mapTask.Key, map[any][]any{"x": {int64(1)}})

	reduceTask := m.NextTask()
	if reduceTask.Kind != KindReduce || reduceTask.Key != "x" {
		t.Fatalf("got %+v", reduceTask)
	}
	values, ok := reduceTask.Value.([]any)
	if !ok || len(values) != 1 || values[0] != int64(1) {
		t.Fatalf("got values %#v", reduceTask.Value)
	}
	m.ReduceDone(reduceTask.Key, int64(1), true)

	final := m.NextTask()
	if final.Kind != KindDisconnect {
		t.Fatalf("got %+v, want disconnect", final)
	}
	results := waitDone(t, m)
	if results["x"] != int64(1) {
		t.Fatalf("got %v", results)
	}
}

func TestOldestTimestampReassignment(t *testing.T) {
	m := New(map[any]any{int64(0): "a", int64(1): "b"}, WithReportInterval(0))

	first := m.NextTask()
	time.Sleep(2 * time.Millisecond)
	second := m.NextTask()
	if first.Kind != KindMap || second.Kind != KindMap {
		t.Fatalf("expected two map tasks, got %+v %+v", first, second)
	}

	// Both tasks are now outstanding; a third asker should be handed the
	// oldest outstanding one (the first), not a fresh key.
	third := m.NextTask()
	if third.Kind != KindMap || third.Key != first.Key {
		t.Fatalf("expected reassignment of %v, got %+v", first.Key, third)
	}

	// Completing the original first key's map (late result from the
	// crashed worker) still counts, since it's at-most-once, not
	// exactly-once: the key is in workingMaps until a result is applied.
	m.MapDone(first.Key, map[any][]any{"k": {first.Key}})
	m.MapDone(second.Key, map[any][]any{"k": {second.Key}})

	r := m.NextTask()
	if r.Kind != KindReduce || r.Key != "k" {
		t.Fatalf("got %+v", r)
	}
	values := r.Value.([]any)
	if len(values) != 2 {
		t.Fatalf("expected both map results shuffled together, got %v", values)
	}
}

func TestLateDuplicateMapDoneIsDropped(t *testing.T) {
	// A key can only be completed once: after its first mapdone has been
	// applied, a second mapdone for the same key is a no-op (key no
	// longer outstanding).
	m := New(map[any]any{int64(0): "a"}, WithReportInterval(0))
	task := m.NextTask()
	m.MapDone(task.Key, map[any][]any{"k": {int64(1)}})
	// Second, late completion for the same (already-applied) key.
	m.MapDone(task.Key, map[any][]any{"k": {int64(2)}})

	reduceTask := m.NextTask()
	values := reduceTask.Value.([]any)
	if len(values) != 1 || values[0] != int64(1) {
		t.Fatalf("late duplicate mapdone should have been dropped, got %v", values)
	}
}

func TestMapDoneWithNilOutputCountsAsEmpty(t *testing.T) {
	m := New(map[any]any{int64(0): "a"}, WithReportInterval(0))
	task := m.NextTask()
	m.MapDone(task.Key, nil)

	final := m.NextTask()
	if final.Kind != KindDisconnect {
		t.Fatalf("expected no reduce work, got %+v", final)
	}
	results := waitDone(t, m)
	if len(results) != 0 {
		t.Fatalf("got %v", results)
	}
}

func TestReduceDoneAbsentOmitsKey(t *testing.T) {
	m := New(map[any]any{int64(0): "a"}, WithReportInterval(0))
	task := m.NextTask()
	m.MapDone(task.Key, map[any][]any{"k": {int64(1)}})

	reduceTask := m.NextTask()
	m.ReduceDone(reduceTask.Key, nil, false)

	m.NextTask() // drains to disconnect
	results := waitDone(t, m)
	if _, present := results["k"]; present {
		t.Fatalf("expected key to be omitted, got %v", results)
	}
}

func TestDuplicateMapOutputsBothAppearInReduceValues(t *testing.T) {
	m := New(map[any]any{int64(0): "a", int64(1): "b"}, WithReportInterval(0))
	first := m.NextTask()
	second := m.NextTask()
	m.MapDone(first.Key, map[any][]any{"k": {int64(7)}})
	m.MapDone(second.Key, map[any][]any{"k": {int64(7)}})

	reduceTask := m.NextTask()
	values := reduceTask.Value.([]any)
	if len(values) != 2 || values[0] != int64(7) || values[1] != int64(7) {
		t.Fatalf("expected both duplicate values preserved, got %v", values)
	}
}
