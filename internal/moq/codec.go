package moq

import (
	"fmt"

	"github.com/moqsession/moq/internal/wire"
)

// parseErr wraps a field-parse failure with the enclosing message's name.
func parseErr(msgType uint64, field string, err error) error {
	return &ParseError{Message: messageName(msgType), Field: field, Err: err}
}

// ParseClientSetup parses a CLIENT_SETUP payload.
func ParseClientSetup(data []byte) (ClientSetup, error) {
	r := wire.NewReader(data)
	var cs ClientSetup

	n, err := r.Varint()
	if err != nil {
		return cs, parseErr(TypeClientSetup, "num_versions", err)
	}
	cs.SupportedVersions = make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		v, err := r.Varint()
		if err != nil {
			return cs, parseErr(TypeClientSetup, "supported_version", err)
		}
		cs.SupportedVersions[i] = v
	}

	params, err := r.ParameterList()
	if err != nil {
		return cs, parseErr(TypeClientSetup, "parameters", err)
	}
	cs.Parameters = params
	return cs, nil
}

// EncodeClientSetup serializes a CLIENT_SETUP payload.
func EncodeClientSetup(cs ClientSetup) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, uint64(len(cs.SupportedVersions)))
	for _, v := range cs.SupportedVersions {
		buf = wire.AppendVarint(buf, v)
	}
	buf = wire.AppendParameterList(buf, cs.Parameters)
	return buf
}

// ParseServerSetup parses a SERVER_SETUP payload.
func ParseServerSetup(data []byte) (ServerSetup, error) {
	r := wire.NewReader(data)
	var ss ServerSetup

	v, err := r.Varint()
	if err != nil {
		return ss, parseErr(TypeServerSetup, "selected_version", err)
	}
	ss.SelectedVersion = v

	params, err := r.ParameterList()
	if err != nil {
		return ss, parseErr(TypeServerSetup, "parameters", err)
	}
	ss.Parameters = params
	return ss, nil
}

// EncodeServerSetup serializes a SERVER_SETUP payload.
func EncodeServerSetup(ss ServerSetup) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, ss.SelectedVersion)
	buf = wire.AppendParameterList(buf, ss.Parameters)
	return buf
}

// ParseSubscribe parses a SUBSCRIBE payload.
func ParseSubscribe(data []byte) (Subscribe, error) {
	r := wire.NewReader(data)
	var s Subscribe
	var err error

	if s.RequestID, err = r.Varint(); err != nil {
		return s, parseErr(TypeSubscribe, "request_id", err)
	}
	if s.Namespace, err = r.Tuple(); err != nil {
		return s, parseErr(TypeSubscribe, "namespace", err)
	}
	if s.TrackName, err = r.ByteString(); err != nil {
		return s, parseErr(TypeSubscribe, "track_name", err)
	}
	if s.Priority, err = r.Byte(); err != nil {
		return s, parseErr(TypeSubscribe, "priority", err)
	}
	if s.GroupOrder, err = r.Byte(); err != nil {
		return s, parseErr(TypeSubscribe, "group_order", err)
	}
	if s.Forward, err = r.Byte(); err != nil {
		return s, parseErr(TypeSubscribe, "forward", err)
	}
	if s.FilterType, err = r.Varint(); err != nil {
		return s, parseErr(TypeSubscribe, "filter_type", err)
	}

	switch s.FilterType {
	case FilterLargestObject, FilterNextGroupStart:
		// no location fields
	case FilterAbsoluteStart:
		if s.StartLocation, err = r.Location(); err != nil {
			return s, parseErr(TypeSubscribe, "start_location", err)
		}
	case FilterAbsoluteRange:
		if s.StartLocation, err = r.Location(); err != nil {
			return s, parseErr(TypeSubscribe, "start_location", err)
		}
		if s.EndGroup, err = r.Varint(); err != nil {
			return s, parseErr(TypeSubscribe, "end_group", err)
		}
	default:
		return s, &MalformedMessageError{Kind: "SUBSCRIBE", Offset: r.Pos(), Err: fmt.Errorf("unsupported filter type %d", s.FilterType)}
	}

	if s.Parameters, err = r.ParameterList(); err != nil {
		return s, parseErr(TypeSubscribe, "parameters", err)
	}
	return s, nil
}

// EncodeSubscribe serializes a SUBSCRIBE payload.
func EncodeSubscribe(s Subscribe) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, s.RequestID)
	buf = wire.AppendTuple(buf, s.Namespace)
	buf = wire.AppendByteString(buf, s.TrackName)
	buf = append(buf, s.Priority, s.GroupOrder, s.Forward)
	buf = wire.AppendVarint(buf, s.FilterType)

	switch s.FilterType {
	case FilterAbsoluteStart:
		buf = wire.AppendLocation(buf, s.StartLocation)
	case FilterAbsoluteRange:
		buf = wire.AppendLocation(buf, s.StartLocation)
		buf = wire.AppendVarint(buf, s.EndGroup)
	}

	buf = wire.AppendParameterList(buf, s.Parameters)
	return buf
}

// ParseSubscribeOK parses a SUBSCRIBE_OK payload.
func ParseSubscribeOK(data []byte) (SubscribeOK, error) {
	r := wire.NewReader(data)
	var sok SubscribeOK
	var err error

	if sok.RequestID, err = r.Varint(); err != nil {
		return sok, parseErr(TypeSubscribeOK, "request_id", err)
	}
	if sok.TrackAlias, err = r.Varint(); err != nil {
		return sok, parseErr(TypeSubscribeOK, "track_alias", err)
	}
	if sok.Expires, err = r.Varint(); err != nil {
		return sok, parseErr(TypeSubscribeOK, "expires", err)
	}
	if sok.GroupOrder, err = r.Byte(); err != nil {
		return sok, parseErr(TypeSubscribeOK, "group_order", err)
	}
	exists, err := r.Byte()
	if err != nil {
		return sok, parseErr(TypeSubscribeOK, "content_exists", err)
	}
	sok.ContentExists = exists != 0
	if sok.ContentExists {
		if sok.LargestLocation, err = r.Location(); err != nil {
			return sok, parseErr(TypeSubscribeOK, "largest_location", err)
		}
	}
	if sok.Parameters, err = r.ParameterList(); err != nil {
		return sok, parseErr(TypeSubscribeOK, "parameters", err)
	}
	return sok, nil
}

// EncodeSubscribeOK serializes a SUBSCRIBE_OK payload.
func EncodeSubscribeOK(sok SubscribeOK) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, sok.RequestID)
	buf = wire.AppendVarint(buf, sok.TrackAlias)
	buf = wire.AppendVarint(buf, sok.Expires)
	buf = append(buf, sok.GroupOrder)
	if sok.ContentExists {
		buf = append(buf, 1)
		buf = wire.AppendLocation(buf, sok.LargestLocation)
	} else {
		buf = append(buf, 0)
	}
	buf = wire.AppendParameterList(buf, sok.Parameters)
	return buf
}

// ParseSubscribeError parses a SUBSCRIBE_ERROR payload.
func ParseSubscribeError(data []byte) (SubscribeError, error) {
	r := wire.NewReader(data)
	var se SubscribeError
	var err error

	if se.RequestID, err = r.Varint(); err != nil {
		return se, parseErr(TypeSubscribeError, "request_id", err)
	}
	if se.ErrorCode, err = r.Varint(); err != nil {
		return se, parseErr(TypeSubscribeError, "error_code", err)
	}
	reason, err := r.ByteString()
	if err != nil {
		return se, parseErr(TypeSubscribeError, "reason_phrase", err)
	}
	se.ReasonPhrase = string(reason)
	return se, nil
}

// EncodeSubscribeError serializes a SUBSCRIBE_ERROR payload.
func EncodeSubscribeError(se SubscribeError) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, se.RequestID)
	buf = wire.AppendVarint(buf, se.ErrorCode)
	buf = wire.AppendByteString(buf, []byte(se.ReasonPhrase))
	return buf
}

// ParseSubscribeUpdate parses a SUBSCRIBE_UPDATE payload.
func ParseSubscribeUpdate(data []byte) (SubscribeUpdate, error) {
	r := wire.NewReader(data)
	var su SubscribeUpdate
	var err error

	if su.RequestID, err = r.Varint(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "request_id", err)
	}
	if su.StartLocation, err = r.Location(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "start_location", err)
	}
	if su.EndGroup, err = r.Varint(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "end_group", err)
	}
	if su.Priority, err = r.Byte(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "priority", err)
	}
	if su.Forward, err = r.Byte(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "forward", err)
	}
	if su.Parameters, err = r.ParameterList(); err != nil {
		return su, parseErr(TypeSubscribeUpdate, "parameters", err)
	}
	return su, nil
}

// EncodeSubscribeUpdate serializes a SUBSCRIBE_UPDATE payload.
func EncodeSubscribeUpdate(su SubscribeUpdate) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, su.RequestID)
	buf = wire.AppendLocation(buf, su.StartLocation)
	buf = wire.AppendVarint(buf, su.EndGroup)
	buf = append(buf, su.Priority, su.Forward)
	buf = wire.AppendParameterList(buf, su.Parameters)
	return buf
}

// ParseUnsubscribe parses an UNSUBSCRIBE payload.
func ParseUnsubscribe(data []byte) (Unsubscribe, error) {
	r := wire.NewReader(data)
	reqID, err := r.Varint()
	if err != nil {
		return Unsubscribe{}, parseErr(TypeUnsubscribe, "request_id", err)
	}
	return Unsubscribe{RequestID: reqID}, nil
}

// EncodeUnsubscribe serializes an UNSUBSCRIBE payload.
func EncodeUnsubscribe(u Unsubscribe) []byte {
	return wire.AppendVarint(nil, u.RequestID)
}

// ParsePublishDone parses a PUBLISH_DONE payload.
func ParsePublishDone(data []byte) (PublishDone, error) {
	r := wire.NewReader(data)
	var pd PublishDone
	var err error

	if pd.RequestID, err = r.Varint(); err != nil {
		return pd, parseErr(TypePublishDone, "request_id", err)
	}
	if pd.StatusCode, err = r.Varint(); err != nil {
		return pd, parseErr(TypePublishDone, "status_code", err)
	}
	if pd.StreamCount, err = r.Varint(); err != nil {
		return pd, parseErr(TypePublishDone, "stream_count", err)
	}
	reason, err := r.ByteString()
	if err != nil {
		return pd, parseErr(TypePublishDone, "reason_phrase", err)
	}
	pd.ReasonPhrase = string(reason)
	return pd, nil
}

// EncodePublishDone serializes a PUBLISH_DONE payload.
func EncodePublishDone(pd PublishDone) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, pd.RequestID)
	buf = wire.AppendVarint(buf, pd.StatusCode)
	buf = wire.AppendVarint(buf, pd.StreamCount)
	buf = wire.AppendByteString(buf, []byte(pd.ReasonPhrase))
	return buf
}

// ParsePublishNamespace parses a PUBLISH_NAMESPACE payload.
func ParsePublishNamespace(data []byte) (PublishNamespace, error) {
	r := wire.NewReader(data)
	var pn PublishNamespace
	var err error

	if pn.RequestID, err = r.Varint(); err != nil {
		return pn, parseErr(TypePublishNamespace, "request_id", err)
	}
	if pn.Namespace, err = r.Tuple(); err != nil {
		return pn, parseErr(TypePublishNamespace, "namespace", err)
	}
	if pn.Parameters, err = r.ParameterList(); err != nil {
		return pn, parseErr(TypePublishNamespace, "parameters", err)
	}
	return pn, nil
}

// EncodePublishNamespace serializes a PUBLISH_NAMESPACE payload.
func EncodePublishNamespace(pn PublishNamespace) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, pn.RequestID)
	buf = wire.AppendTuple(buf, pn.Namespace)
	buf = wire.AppendParameterList(buf, pn.Parameters)
	return buf
}

// ParsePublishNamespaceOK parses a PUBLISH_NAMESPACE_OK payload.
func ParsePublishNamespaceOK(data []byte) (PublishNamespaceOK, error) {
	r := wire.NewReader(data)
	var ok PublishNamespaceOK
	var err error

	if ok.RequestID, err = r.Varint(); err != nil {
		return ok, parseErr(TypePublishNamespaceOK, "request_id", err)
	}
	if ok.Parameters, err = r.ParameterList(); err != nil {
		return ok, parseErr(TypePublishNamespaceOK, "parameters", err)
	}
	return ok, nil
}

// EncodePublishNamespaceOK serializes a PUBLISH_NAMESPACE_OK payload.
func EncodePublishNamespaceOK(ok PublishNamespaceOK) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, ok.RequestID)
	buf = wire.AppendParameterList(buf, ok.Parameters)
	return buf
}

// ParsePublishNamespaceError parses a PUBLISH_NAMESPACE_ERROR payload.
func ParsePublishNamespaceError(data []byte) (PublishNamespaceError, error) {
	r := wire.NewReader(data)
	var pe PublishNamespaceError
	var err error

	if pe.RequestID, err = r.Varint(); err != nil {
		return pe, parseErr(TypePublishNamespaceErr, "request_id", err)
	}
	if pe.ErrorCode, err = r.Varint(); err != nil {
		return pe, parseErr(TypePublishNamespaceErr, "error_code", err)
	}
	reason, err := r.ByteString()
	if err != nil {
		return pe, parseErr(TypePublishNamespaceErr, "reason_phrase", err)
	}
	pe.ReasonPhrase = string(reason)
	return pe, nil
}

// EncodePublishNamespaceError serializes a PUBLISH_NAMESPACE_ERROR payload.
func EncodePublishNamespaceError(pe PublishNamespaceError) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, pe.RequestID)
	buf = wire.AppendVarint(buf, pe.ErrorCode)
	buf = wire.AppendByteString(buf, []byte(pe.ReasonPhrase))
	return buf
}

// ParsePublishNamespaceDone parses a PUBLISH_NAMESPACE_DONE payload.
func ParsePublishNamespaceDone(data []byte) (PublishNamespaceDone, error) {
	r := wire.NewReader(data)
	var pd PublishNamespaceDone
	var err error

	if pd.Namespace, err = r.Tuple(); err != nil {
		return pd, parseErr(TypePublishNamespaceDone, "namespace", err)
	}
	if pd.StatusCode, err = r.Varint(); err != nil {
		return pd, parseErr(TypePublishNamespaceDone, "status_code", err)
	}
	reason, err := r.ByteString()
	if err != nil {
		return pd, parseErr(TypePublishNamespaceDone, "reason_phrase", err)
	}
	pd.ReasonPhrase = string(reason)
	return pd, nil
}

// EncodePublishNamespaceDone serializes a PUBLISH_NAMESPACE_DONE payload.
func EncodePublishNamespaceDone(pd PublishNamespaceDone) []byte {
	var buf []byte
	buf = wire.AppendTuple(buf, pd.Namespace)
	buf = wire.AppendVarint(buf, pd.StatusCode)
	buf = wire.AppendByteString(buf, []byte(pd.ReasonPhrase))
	return buf
}

// ParseSubscribeNamespace parses a SUBSCRIBE_NAMESPACE payload.
func ParseSubscribeNamespace(data []byte) (SubscribeNamespace, error) {
	r := wire.NewReader(data)
	var sn SubscribeNamespace
	var err error

	if sn.RequestID, err = r.Varint(); err != nil {
		return sn, parseErr(TypeSubscribeNamespace, "request_id", err)
	}
	if sn.Prefix, err = r.Tuple(); err != nil {
		return sn, parseErr(TypeSubscribeNamespace, "prefix", err)
	}
	if sn.Parameters, err = r.ParameterList(); err != nil {
		return sn, parseErr(TypeSubscribeNamespace, "parameters", err)
	}
	return sn, nil
}

// EncodeSubscribeNamespace serializes a SUBSCRIBE_NAMESPACE payload.
func EncodeSubscribeNamespace(sn SubscribeNamespace) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, sn.RequestID)
	buf = wire.AppendTuple(buf, sn.Prefix)
	buf = wire.AppendParameterList(buf, sn.Parameters)
	return buf
}

// ParseSubscribeNamespaceOK parses a SUBSCRIBE_NAMESPACE_OK payload.
func ParseSubscribeNamespaceOK(data []byte) (SubscribeNamespaceOK, error) {
	r := wire.NewReader(data)
	reqID, err := r.Varint()
	if err != nil {
		return SubscribeNamespaceOK{}, parseErr(TypeSubscribeNamespaceOK, "request_id", err)
	}
	return SubscribeNamespaceOK{RequestID: reqID}, nil
}

// EncodeSubscribeNamespaceOK serializes a SUBSCRIBE_NAMESPACE_OK payload.
func EncodeSubscribeNamespaceOK(ok SubscribeNamespaceOK) []byte {
	return wire.AppendVarint(nil, ok.RequestID)
}

// ParseUnsubscribeNamespace parses an UNSUBSCRIBE_NAMESPACE payload.
func ParseUnsubscribeNamespace(data []byte) (UnsubscribeNamespace, error) {
	r := wire.NewReader(data)
	reqID, err := r.Varint()
	if err != nil {
		return UnsubscribeNamespace{}, parseErr(TypeUnsubscribeNamespace, "request_id", err)
	}
	return UnsubscribeNamespace{RequestID: reqID}, nil
}

// EncodeUnsubscribeNamespace serializes an UNSUBSCRIBE_NAMESPACE payload.
func EncodeUnsubscribeNamespace(u UnsubscribeNamespace) []byte {
	return wire.AppendVarint(nil, u.RequestID)
}

// ParseFetch parses a FETCH payload (standalone range fetch only; joining
// fetches are a Non-goal).
func ParseFetch(data []byte) (Fetch, error) {
	r := wire.NewReader(data)
	var f Fetch
	var err error

	if f.RequestID, err = r.Varint(); err != nil {
		return f, parseErr(TypeFetch, "request_id", err)
	}
	if f.Namespace, err = r.Tuple(); err != nil {
		return f, parseErr(TypeFetch, "namespace", err)
	}
	if f.TrackName, err = r.ByteString(); err != nil {
		return f, parseErr(TypeFetch, "track_name", err)
	}
	if f.Priority, err = r.Byte(); err != nil {
		return f, parseErr(TypeFetch, "priority", err)
	}
	if f.GroupOrder, err = r.Byte(); err != nil {
		return f, parseErr(TypeFetch, "group_order", err)
	}
	if f.StartLocation, err = r.Location(); err != nil {
		return f, parseErr(TypeFetch, "start_location", err)
	}
	if f.EndLocation, err = r.Location(); err != nil {
		return f, parseErr(TypeFetch, "end_location", err)
	}
	if f.Parameters, err = r.ParameterList(); err != nil {
		return f, parseErr(TypeFetch, "parameters", err)
	}
	return f, nil
}

// EncodeFetch serializes a FETCH payload.
func EncodeFetch(f Fetch) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, f.RequestID)
	buf = wire.AppendTuple(buf, f.Namespace)
	buf = wire.AppendByteString(buf, f.TrackName)
	buf = append(buf, f.Priority, f.GroupOrder)
	buf = wire.AppendLocation(buf, f.StartLocation)
	buf = wire.AppendLocation(buf, f.EndLocation)
	buf = wire.AppendParameterList(buf, f.Parameters)
	return buf
}

// ParseFetchCancel parses a FETCH_CANCEL payload.
func ParseFetchCancel(data []byte) (FetchCancel, error) {
	r := wire.NewReader(data)
	reqID, err := r.Varint()
	if err != nil {
		return FetchCancel{}, parseErr(TypeFetchCancel, "request_id", err)
	}
	return FetchCancel{RequestID: reqID}, nil
}

// EncodeFetchCancel serializes a FETCH_CANCEL payload.
func EncodeFetchCancel(f FetchCancel) []byte {
	return wire.AppendVarint(nil, f.RequestID)
}

// ParseGoAway parses a GOAWAY payload. LastRequestID is mandatory; its
// absence is a MalformedMessage per spec.md §9.
func ParseGoAway(data []byte) (GoAway, error) {
	r := wire.NewReader(data)
	var ga GoAway
	var err error

	if ga.LastRequestID, err = r.Varint(); err != nil {
		return ga, &MalformedMessageError{Kind: "GOAWAY", Offset: r.Pos(), Err: err}
	}

	if r.Remaining() > 0 {
		uri, err := r.ByteString()
		if err != nil {
			return ga, parseErr(TypeGoAway, "new_session_uri", err)
		}
		if len(uri) > 0 {
			ga.NewURI = uri
			ga.HasNewURI = true
		}
	}
	return ga, nil
}

// EncodeGoAway serializes a GOAWAY payload.
func EncodeGoAway(ga GoAway) []byte {
	var buf []byte
	buf = wire.AppendVarint(buf, ga.LastRequestID)
	if ga.HasNewURI {
		buf = wire.AppendByteString(buf, ga.NewURI)
	} else {
		buf = wire.AppendByteString(buf, nil)
	}
	return buf
}

// ParseMaxRequestID parses a MAX_REQUEST_ID payload.
func ParseMaxRequestID(data []byte) (MaxRequestIDMsg, error) {
	r := wire.NewReader(data)
	reqID, err := r.Varint()
	if err != nil {
		return MaxRequestIDMsg{}, parseErr(TypeMaxRequestID, "request_id", err)
	}
	return MaxRequestIDMsg{RequestID: reqID}, nil
}

// EncodeMaxRequestID serializes a MAX_REQUEST_ID payload.
func EncodeMaxRequestID(m MaxRequestIDMsg) []byte {
	return wire.AppendVarint(nil, m.RequestID)
}
