package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/testutil"
)

const auditTbl = "audit"

func newTestSink(db *testutil.Dynamo) *Sink {
	s := NewSink(db, auditTbl)
	s.nowFunc = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	s.idFunc = func() string { return "entry-1" }
	return s
}

func TestRecord_WritesEntryWithDetail(t *testing.T) {
	db := testutil.NewDynamo()
	s := newTestSink(db)

	err := s.Record(context.Background(), "payment_confirmed", "payment", "o1", "order", "", PaymentConfirmedDetail{
		Reference: "ref-1",
		Amount:    150,
		Channel:   "mobile_money",
	}, SeverityInfo, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := db.Item(auditTbl, "entry-1")
	if item == nil {
		t.Fatal("entry not written")
	}
	if got := db.StringAttr(auditTbl, "entry-1", "actor"); got != SystemActor {
		t.Fatalf("actor = %q, want system default", got)
	}
	details := db.StringAttr(auditTbl, "entry-1", "details")
	if !strings.Contains(details, `"reference":"ref-1"`) {
		t.Fatalf("details = %s", details)
	}
	if sev, ok := item["severity"].(*types.AttributeValueMemberS); !ok || sev.Value != SeverityInfo {
		t.Fatalf("severity = %v", item["severity"])
	}
}

func TestRecord_ExplicitActorAndNilDetail(t *testing.T) {
	db := testutil.NewDynamo()
	s := newTestSink(db)

	if err := s.Record(context.Background(), "fulfillment_pack", "fulfillment", "o1", "order", "", nil, SeverityInfo, "vendor-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.StringAttr(auditTbl, "entry-1", "actor"); got != "vendor-9" {
		t.Fatalf("actor = %q", got)
	}
	if got := db.StringAttr(auditTbl, "entry-1", "details"); got != "" {
		t.Fatalf("details = %q, want empty", got)
	}
}
