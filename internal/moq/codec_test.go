package moq

import (
	"bytes"
	"errors"
	"testing"

	"github.com/moqsession/moq/internal/wire"
)

func TestClientSetupRoundTrip(t *testing.T) {
	t.Parallel()
	cs := ClientSetup{
		SupportedVersions: []uint64{Version},
		Parameters: wire.ParameterList{
			wire.NewBytesParameter(ParamPath, []byte("/moq")),
			wire.NewNumberParameter(ParamMaxRequestID, 100),
		},
	}
	got, err := ParseClientSetup(EncodeClientSetup(cs))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SupportedVersions) != 1 || got.SupportedVersions[0] != Version {
		t.Fatalf("versions = %v", got.SupportedVersions)
	}
	if path, ok := got.Path(); !ok || path != "/moq" {
		t.Fatalf("path = %q, %v", path, ok)
	}
	if got.MaxRequestID() != 100 {
		t.Fatalf("max request id = %d", got.MaxRequestID())
	}
}

func TestClientSetupNoParameters(t *testing.T) {
	t.Parallel()
	cs := ClientSetup{SupportedVersions: []uint64{Version}}
	got, err := ParseClientSetup(EncodeClientSetup(cs))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Path(); ok {
		t.Fatal("expected no path parameter")
	}
	if got.MaxRequestID() != 0 {
		t.Fatalf("max request id = %d, want 0", got.MaxRequestID())
	}
}

func TestServerSetupRoundTrip(t *testing.T) {
	t.Parallel()
	ss := ServerSetup{
		SelectedVersion: Version,
		Parameters:      wire.ParameterList{wire.NewNumberParameter(ParamMaxRequestID, 50)},
	}
	got, err := ParseServerSetup(EncodeServerSetup(ss))
	if err != nil {
		t.Fatal(err)
	}
	if got.SelectedVersion != Version {
		t.Fatalf("version = %#x", got.SelectedVersion)
	}
	if got.MaxRequestID() != 50 {
		t.Fatalf("max request id = %d", got.MaxRequestID())
	}
}

func TestSubscribeRoundTripLargestObject(t *testing.T) {
	t.Parallel()
	s := Subscribe{
		RequestID:  0,
		Namespace:  wire.Tuple{[]byte("live")},
		TrackName:  []byte("video"),
		Priority:   128,
		GroupOrder: GroupOrderAscending,
		Forward:    1,
		FilterType: FilterLargestObject,
	}
	got, err := ParseSubscribe(EncodeSubscribe(s))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Namespace.Equal(s.Namespace) {
		t.Fatalf("namespace = %v", got.Namespace)
	}
	if string(got.TrackName) != "video" || got.Priority != 128 || got.Forward != 1 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubscribeRoundTripAbsoluteRange(t *testing.T) {
	t.Parallel()
	s := Subscribe{
		RequestID:     2,
		Namespace:     wire.Tuple{[]byte("cam1")},
		TrackName:     []byte("audio"),
		FilterType:    FilterAbsoluteRange,
		StartLocation: wire.Location{Group: 3, Object: 0},
		EndGroup:      10,
	}
	got, err := ParseSubscribe(EncodeSubscribe(s))
	if err != nil {
		t.Fatal(err)
	}
	if got.StartLocation != s.StartLocation || got.EndGroup != 10 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubscribeUnsupportedFilterType(t *testing.T) {
	t.Parallel()
	s := Subscribe{Namespace: wire.Tuple{}, TrackName: []byte("x"), FilterType: 99}
	_, err := ParseSubscribe(EncodeSubscribe(s))
	var malformed *MalformedMessageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedMessageError, got %v", err)
	}
}

func TestSubscribeOKRoundTripWithContent(t *testing.T) {
	t.Parallel()
	sok := SubscribeOK{
		RequestID:       0,
		TrackAlias:      7,
		Expires:         0,
		GroupOrder:      GroupOrderAscending,
		ContentExists:   true,
		LargestLocation: wire.Location{Group: 10, Object: 5},
	}
	got, err := ParseSubscribeOK(EncodeSubscribeOK(sok))
	if err != nil {
		t.Fatal(err)
	}
	if !got.ContentExists || got.LargestLocation != sok.LargestLocation || got.TrackAlias != 7 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubscribeOKRoundTripNoContent(t *testing.T) {
	t.Parallel()
	sok := SubscribeOK{RequestID: 1, TrackAlias: 3}
	got, err := ParseSubscribeOK(EncodeSubscribeOK(sok))
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentExists {
		t.Fatal("expected ContentExists = false")
	}
}

func TestSubscribeErrorRoundTrip(t *testing.T) {
	t.Parallel()
	se := SubscribeError{RequestID: 4, ErrorCode: 2, ReasonPhrase: "no such track"}
	got, err := ParseSubscribeError(EncodeSubscribeError(se))
	if err != nil {
		t.Fatal(err)
	}
	if got != se {
		t.Fatalf("got = %+v, want %+v", got, se)
	}
}

func TestSubscribeUpdateRoundTrip(t *testing.T) {
	t.Parallel()
	su := SubscribeUpdate{
		RequestID:     5,
		StartLocation: wire.Location{Group: 1, Object: 2},
		EndGroup:      9,
		Priority:      50,
		Forward:       1,
	}
	got, err := ParseSubscribeUpdate(EncodeSubscribeUpdate(su))
	if err != nil {
		t.Fatal(err)
	}
	if got.StartLocation != su.StartLocation || got.EndGroup != 9 || got.Priority != 50 {
		t.Fatalf("got = %+v", got)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParseUnsubscribe(EncodeUnsubscribe(Unsubscribe{RequestID: 9}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 9 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestPublishDoneRoundTrip(t *testing.T) {
	t.Parallel()
	pd := PublishDone{RequestID: 1, StatusCode: 0, StreamCount: 3, ReasonPhrase: "done"}
	got, err := ParsePublishDone(EncodePublishDone(pd))
	if err != nil {
		t.Fatal(err)
	}
	if got != pd {
		t.Fatalf("got = %+v, want %+v", got, pd)
	}
}

func TestPublishNamespaceRoundTrip(t *testing.T) {
	t.Parallel()
	pn := PublishNamespace{RequestID: 0, Namespace: wire.Tuple{[]byte("cam1")}}
	got, err := ParsePublishNamespace(EncodePublishNamespace(pn))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Namespace.Equal(pn.Namespace) {
		t.Fatalf("namespace = %v", got.Namespace)
	}
}

func TestPublishNamespaceOKRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParsePublishNamespaceOK(EncodePublishNamespaceOK(PublishNamespaceOK{RequestID: 2}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 2 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestPublishNamespaceErrorRoundTrip(t *testing.T) {
	t.Parallel()
	pe := PublishNamespaceError{RequestID: 3, ErrorCode: 1, ReasonPhrase: "taken"}
	got, err := ParsePublishNamespaceError(EncodePublishNamespaceError(pe))
	if err != nil {
		t.Fatal(err)
	}
	if got != pe {
		t.Fatalf("got = %+v, want %+v", got, pe)
	}
}

func TestPublishNamespaceDoneRoundTrip(t *testing.T) {
	t.Parallel()
	pd := PublishNamespaceDone{Namespace: wire.Tuple{[]byte("cam1")}, StatusCode: 0, ReasonPhrase: "bye"}
	got, err := ParsePublishNamespaceDone(EncodePublishNamespaceDone(pd))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Namespace.Equal(pd.Namespace) || got.ReasonPhrase != "bye" {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubscribeNamespaceRoundTrip(t *testing.T) {
	t.Parallel()
	sn := SubscribeNamespace{RequestID: 6, Prefix: wire.Tuple{[]byte("cam")}}
	got, err := ParseSubscribeNamespace(EncodeSubscribeNamespace(sn))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Prefix.Equal(sn.Prefix) {
		t.Fatalf("prefix = %v", got.Prefix)
	}
}

func TestSubscribeNamespaceOKRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParseSubscribeNamespaceOK(EncodeSubscribeNamespaceOK(SubscribeNamespaceOK{RequestID: 8}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 8 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestUnsubscribeNamespaceRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParseUnsubscribeNamespace(EncodeUnsubscribeNamespace(UnsubscribeNamespace{RequestID: 11}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 11 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestFetchRoundTrip(t *testing.T) {
	t.Parallel()
	f := Fetch{
		RequestID:     12,
		Namespace:     wire.Tuple{[]byte("live")},
		TrackName:     []byte("video"),
		Priority:      10,
		GroupOrder:    GroupOrderDescending,
		StartLocation: wire.Location{Group: 1, Object: 0},
		EndLocation:   wire.Location{Group: 5, Object: 0},
	}
	got, err := ParseFetch(EncodeFetch(f))
	if err != nil {
		t.Fatal(err)
	}
	if got.StartLocation != f.StartLocation || got.EndLocation != f.EndLocation || string(got.TrackName) != "video" {
		t.Fatalf("got = %+v", got)
	}
}

func TestFetchCancelRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParseFetchCancel(EncodeFetchCancel(FetchCancel{RequestID: 13}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 13 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestGoAwayRoundTripWithURI(t *testing.T) {
	t.Parallel()
	ga := GoAway{LastRequestID: 42, NewURI: []byte("https://example.com/moq"), HasNewURI: true}
	got, err := ParseGoAway(EncodeGoAway(ga))
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRequestID != 42 || !got.HasNewURI || !bytes.Equal(got.NewURI, ga.NewURI) {
		t.Fatalf("got = %+v", got)
	}
}

func TestGoAwayRoundTripNoURI(t *testing.T) {
	t.Parallel()
	ga := GoAway{LastRequestID: 7}
	got, err := ParseGoAway(EncodeGoAway(ga))
	if err != nil {
		t.Fatal(err)
	}
	if got.HasNewURI {
		t.Fatal("expected HasNewURI = false")
	}
}

func TestGoAwayMissingLastRequestID(t *testing.T) {
	t.Parallel()
	_, err := ParseGoAway(nil)
	var malformed *MalformedMessageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedMessageError, got %v", err)
	}
}

func TestMaxRequestIDRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := ParseMaxRequestID(EncodeMaxRequestID(MaxRequestIDMsg{RequestID: 1000}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 1000 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}
