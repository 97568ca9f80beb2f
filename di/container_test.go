package di

import (
	"sync"
	"testing"
)

type fakeStore struct {
	name string
}

func (s *fakeStore) GetName() string { return s.name }

type fakeProducer struct {
	connected bool
}

func (p *fakeProducer) Connect() error {
	p.connected = true
	return nil
}

func TestNew(t *testing.T) {
	container := New()
	if container == nil {
		t.Fatal("New returned nil")
	}
	if container.services == nil {
		t.Fatal("services map not initialized")
	}
}

func TestRegister(t *testing.T) {
	container := New()

	service := &fakeStore{name: "store"}
	if err := container.Register(service); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !container.Has((*fakeStore)(nil)) {
		t.Error("service not registered")
	}
}

func TestRegister_Nil(t *testing.T) {
	container := New()

	if err := container.Register(nil); err == nil {
		t.Error("Register(nil) should return an error")
	}
}

func TestResolve(t *testing.T) {
	container := New()

	original := &fakeStore{name: "original"}
	if err := container.Register(original); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	resolved, err := container.Resolve((*fakeStore)(nil))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	resolvedService, ok := resolved.(*fakeStore)
	if !ok {
		t.Fatal("resolved value has the wrong type")
	}
	if resolvedService.name != "original" {
		t.Error("resolved service is not the registered instance")
	}
	if resolvedService != original {
		t.Error("resolved service is not the same instance")
	}
}

func TestResolve_NotFound(t *testing.T) {
	container := New()

	if _, err := container.Resolve((*fakeStore)(nil)); err == nil {
		t.Error("Resolve of an unregistered type should return an error")
	}
}

func TestMustResolve(t *testing.T) {
	container := New()

	service := &fakeStore{name: "store"}
	container.Register(service)

	resolved := container.MustResolve((*fakeStore)(nil))
	resolvedService, ok := resolved.(*fakeStore)
	if !ok {
		t.Fatal("MustResolve returned the wrong type")
	}
	if resolvedService.name != "store" {
		t.Error("MustResolve returned the wrong service")
	}
}

func TestMustResolve_Panic(t *testing.T) {
	container := New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustResolve should panic when the type is unregistered")
		}
	}()

	container.MustResolve((*fakeStore)(nil))
}

func TestHas(t *testing.T) {
	container := New()

	if container.Has((*fakeStore)(nil)) {
		t.Error("Has reported true before any registration")
	}

	container.Register(&fakeStore{name: "store"})

	if !container.Has((*fakeStore)(nil)) {
		t.Error("Has reported false after registration")
	}
}

func TestConcurrent(t *testing.T) {
	container := New()

	const goroutines = 10
	const operations = 100

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				if err := container.Register(&fakeStore{name: "store"}); err != nil {
					t.Errorf("concurrent Register failed: %v", err)
				}
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				container.Resolve((*fakeStore)(nil))
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				container.Has((*fakeStore)(nil))
			}
		}()
	}

	wg.Wait()
}

func TestMultipleServices(t *testing.T) {
	container := New()

	store := &fakeStore{name: "store"}
	producer := &fakeProducer{connected: false}

	container.Register(store)
	container.Register(producer)

	resolvedStore, err := container.Resolve((*fakeStore)(nil))
	if err != nil {
		t.Fatalf("resolving store failed: %v", err)
	}
	if resolvedStore.(*fakeStore).name != "store" {
		t.Error("store resolved incorrectly")
	}

	resolvedProducer, err := container.Resolve((*fakeProducer)(nil))
	if err != nil {
		t.Fatalf("resolving producer failed: %v", err)
	}
	if resolvedProducer.(*fakeProducer).connected {
		t.Error("producer resolved with unexpected state")
	}
}

func TestServiceOverride(t *testing.T) {
	container := New()

	container.Register(&fakeStore{name: "first"})
	container.Register(&fakeStore{name: "second"})

	resolved, err := container.Resolve((*fakeStore)(nil))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.(*fakeStore).name != "second" {
		t.Errorf("expected the later registration to win, got %q", resolved.(*fakeStore).name)
	}
}

func BenchmarkRegister(b *testing.B) {
	container := New()
	service := &fakeStore{name: "bench"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		container.Register(service)
	}
}

func BenchmarkResolve(b *testing.B) {
	container := New()
	container.Register(&fakeStore{name: "bench"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		container.Resolve((*fakeStore)(nil))
	}
}

func BenchmarkHas(b *testing.B) {
	container := New()
	container.Register(&fakeStore{name: "bench"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		container.Has((*fakeStore)(nil))
	}
}

func BenchmarkConcurrentResolve(b *testing.B) {
	container := New()
	container.Register(&fakeStore{name: "bench"})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			container.Resolve((*fakeStore)(nil))
		}
	})
}
