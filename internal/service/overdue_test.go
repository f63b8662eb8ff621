package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/mmeshcher/aquabill/internal/repository"
)

func TestStartOverdueUpdates_PublishesChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newStubRepo()
	repo.overdue = []repository.OverdueInvoice{
		{ID: "inv-1", Number: "INV-1", UserID: 7},
		{ID: "inv-2", Number: "INV-2", UserID: 8},
	}
	repo.overdueCalled = make(chan struct{})

	pub := &stubPublisher{}
	svc := newTestService(repo, Options{Publisher: pub, OverdueInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := svc.StartOverdueUpdates(ctx)

	select {
	case <-repo.overdueCalled:
	case <-time.After(time.Second):
		t.Fatalf("overdue sweep did not run")
	}
	cancel()
	<-done

	assert.Equal(t, []string{"InvoiceStatusChanged", "InvoiceStatusChanged"}, pub.types())
}

func TestStartOverdueUpdates_Disabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &Service{}

	select {
	case <-svc.StartOverdueUpdates(context.Background()):
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartOverdueUpdates did not return without interval")
	}
}
