package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/moqsession/moq/internal/moq"
	"github.com/moqsession/moq/internal/wire"
)

// Session is one MoQ Transport session over a single QUIC/WebTransport
// connection: the setup handshake, the steady-state control dispatch loop,
// and the registries and allocators every control and data operation goes
// through.
//
// Grounded on the teacher's MoQSession (internal/distribution/moq_session.go):
// a persistent buffered control reader, a mutex-guarded control writer, and
// a dispatch-by-type-code read loop. Supervision is upgraded from the
// teacher's single bare goroutine to an errgroup.WithContext, per
// SPEC_FULL.md's ambient-stack call-out, so an error returned by either the
// control loop or the data-stream accept loop cancels the other and tears
// the whole session down instead of leaving a half-dead session running.
// Panics are not recovered.
type Session struct {
	cfg       Config
	log       *slog.Logger
	transport Transport

	controlMu     sync.Mutex
	controlStream io.ReadWriteCloser
	controlReader *bufio.Reader

	allocator     *requestIDAllocator
	correlation   *correlationTable
	subscriptions *subscriptionRegistry
	publications  *publicationRegistry
	namespaces    *namespaceRegistry
	events        *eventBus

	stateMu sync.Mutex
	state   ConnectionState

	teardownOnce sync.Once
}

// New constructs a Session bound to transport. Call Run to perform the
// setup handshake and start the dispatch loop.
func New(cfg Config, transport Transport, log *slog.Logger) *Session {
	cfg.setDefaults()
	if log == nil {
		log = slog.Default()
	}
	controlStream := transport.ControlStream()
	return &Session{
		cfg:           cfg,
		log:           log.With("role", cfg.Role.String()),
		transport:     transport,
		controlStream: controlStream,
		controlReader: bufio.NewReader(controlStream),
		allocator:     newRequestIDAllocator(cfg.Role),
		correlation:   newCorrelationTable(),
		subscriptions: newSubscriptionRegistry(),
		publications:  newPublicationRegistry(),
		namespaces:    newNamespaceRegistry(),
		events:        newEventBus(),
		state:         StateHandshaking,
	}
}

func (s *Session) setState(state ConnectionState, err error) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
	sendOrDropState(s.events.connectionState, ConnectionStateChange{State: state, Err: err})
}

// State returns the session's current lifecycle state.
func (s *Session) State() ConnectionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// ConnectionStateEvents returns the event sequence of lifecycle transitions.
func (s *Session) ConnectionStateEvents() <-chan ConnectionStateChange {
	return s.events.connectionState
}

// IncomingSubscribes returns the event sequence of peer SUBSCRIBE and FETCH
// requests against tracks registered with Publish.
func (s *Session) IncomingSubscribes() <-chan *IncomingSubscribe { return s.events.incomingSubs }

// IncomingPublishes returns the event sequence of peer PUBLISH_NAMESPACE /
// PUBLISH_NAMESPACE_DONE announcements.
func (s *Session) IncomingPublishes() <-chan NamespaceAnnouncement { return s.events.incomingPubs }

// GoAway returns the event sequence that fires once when the peer sends
// GOAWAY.
func (s *Session) GoAway() <-chan GoAwayEvent { return s.events.goAway }

func (s *Session) writeControl(msgType uint64, payload []byte) error {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	return moq.WriteControlMsg(s.controlStream, msgType, payload)
}

// Run performs the setup handshake and then blocks, dispatching control
// messages and accepted data streams, until ctx is cancelled or a fatal
// error occurs. It always returns a non-nil error: context.Canceled on a
// graceful shutdown, or the error that ended the session.
func (s *Session) Run(ctx context.Context) error {
	if err := s.handshake(ctx); err != nil {
		s.setState(StateClosed, err)
		return err
	}
	s.setState(StateEstablished, nil)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.controlLoop(ctx) })
	group.Go(func() error { return s.dataStreamLoop(ctx) })

	err := group.Wait()
	s.teardown(err)
	return err
}

func (s *Session) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SetupTimeout)
	defer cancel()

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if s.cfg.Role == RoleServer {
			path, err := s.handshakeServer()
			done <- result{path, err}
			return
		}
		done <- result{"", s.handshakeClient()}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return &SetupError{Reason: "handshake failed", Err: r.err}
		}
		return nil
	case <-ctx.Done():
		return &SetupError{Reason: "setup timed out", Err: ctx.Err()}
	}
}

func (s *Session) handshakeClient() error {
	payload := moq.EncodeClientSetup(moq.ClientSetup{
		SupportedVersions: s.cfg.SupportedVersions,
		Parameters:        s.clientSetupParameters(),
	})
	if err := s.writeControl(moq.TypeClientSetup, payload); err != nil {
		return fmt.Errorf("write CLIENT_SETUP: %w", err)
	}

	msgType, data, err := moq.ReadControlMsg(s.controlReader)
	if err != nil {
		return fmt.Errorf("read SERVER_SETUP: %w", err)
	}
	if msgType != moq.TypeServerSetup {
		return &ProtocolViolationError{Reason: fmt.Sprintf("expected SERVER_SETUP, got 0x%x", msgType)}
	}
	ss, err := moq.ParseServerSetup(data)
	if err != nil {
		return fmt.Errorf("parse SERVER_SETUP: %w", err)
	}
	if !versionSupported(ss.SelectedVersion, s.cfg.SupportedVersions) {
		return fmt.Errorf("%w: server selected 0x%x", moq.ErrVersionMismatch, ss.SelectedVersion)
	}
	if max := ss.MaxRequestID(); max > 0 {
		s.allocator.setCeiling(max)
	}
	return nil
}

func (s *Session) handshakeServer() (string, error) {
	msgType, data, err := moq.ReadControlMsg(s.controlReader)
	if err != nil {
		return "", fmt.Errorf("read CLIENT_SETUP: %w", err)
	}
	if msgType != moq.TypeClientSetup {
		return "", &ProtocolViolationError{Reason: fmt.Sprintf("expected CLIENT_SETUP, got 0x%x", msgType)}
	}
	cs, err := moq.ParseClientSetup(data)
	if err != nil {
		return "", fmt.Errorf("parse CLIENT_SETUP: %w", err)
	}
	if !versionSupported(moq.Version, cs.SupportedVersions) {
		return "", fmt.Errorf("%w: client offered %v", moq.ErrVersionMismatch, cs.SupportedVersions)
	}
	if max := cs.MaxRequestID(); max > 0 {
		s.allocator.setCeiling(max)
	}

	payload := moq.EncodeServerSetup(moq.ServerSetup{
		SelectedVersion: moq.Version,
		Parameters:      s.serverSetupParameters(),
	})
	if err := s.writeControl(moq.TypeServerSetup, payload); err != nil {
		return "", fmt.Errorf("write SERVER_SETUP: %w", err)
	}

	path, _ := cs.Path()
	return path, nil
}

func (s *Session) clientSetupParameters() wire.ParameterList {
	var params wire.ParameterList
	if s.cfg.Path != "" {
		params = append(params, wire.NewBytesParameter(moq.ParamPath, []byte(s.cfg.Path)))
	}
	if s.cfg.MaxRequestID > 0 {
		params = append(params, wire.NewNumberParameter(moq.ParamMaxRequestID, s.cfg.MaxRequestID))
	}
	return params
}

func (s *Session) serverSetupParameters() wire.ParameterList {
	var params wire.ParameterList
	if s.cfg.MaxRequestID > 0 {
		params = append(params, wire.NewNumberParameter(moq.ParamMaxRequestID, s.cfg.MaxRequestID))
	}
	return params
}

func versionSupported(selected uint64, offered []uint64) bool {
	for _, v := range offered {
		if v == selected {
			return true
		}
	}
	return false
}

// controlLoop reads and dispatches control messages until the stream
// closes, ctx is cancelled, or a fatal protocol violation occurs.
func (s *Session) controlLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgType, payload, err := moq.ReadControlMsg(s.controlReader)
		if err != nil {
			if err == io.EOF {
				return ErrConnectionClosed
			}
			return fmt.Errorf("session: read control message: %w", err)
		}
		if err := s.dispatchControl(ctx, msgType, payload); err != nil {
			return err
		}
	}
}

func (s *Session) dispatchControl(ctx context.Context, msgType uint64, payload []byte) error {
	switch msgType {
	case moq.TypeSubscribe:
		return s.handleSubscribe(payload)
	case moq.TypeSubscribeOK:
		return s.handleSubscribeOK(payload)
	case moq.TypeSubscribeError:
		return s.handleSubscribeError(payload)
	case moq.TypeSubscribeUpdate:
		s.log.Debug("ignoring SUBSCRIBE_UPDATE", "reason", "not yet actionable on this track")
		return nil
	case moq.TypeUnsubscribe:
		return s.handleUnsubscribe(payload)
	case moq.TypePublishDone:
		return s.handlePublishDone(payload)
	case moq.TypePublishNamespace:
		return s.handlePublishNamespace(payload)
	case moq.TypePublishNamespaceOK:
		return s.handlePublishNamespaceOK(payload)
	case moq.TypePublishNamespaceErr:
		return s.handlePublishNamespaceError(payload)
	case moq.TypePublishNamespaceDone:
		return s.handlePublishNamespaceDone(payload)
	case moq.TypeSubscribeNamespace:
		return s.handleSubscribeNamespace(payload)
	case moq.TypeSubscribeNamespaceOK:
		return s.handleSubscribeNamespaceOK(payload)
	case moq.TypeUnsubscribeNamespace:
		return s.handleUnsubscribeNamespace(payload)
	case moq.TypeMaxRequestID:
		return s.handleMaxRequestID(payload)
	case moq.TypeFetch:
		return s.handleFetch(payload)
	case moq.TypeFetchCancel:
		return s.handleFetchCancel(payload)
	case moq.TypeGoAway:
		return s.handleGoAway(payload)
	case moq.TypeClientSetup, moq.TypeServerSetup:
		return &ProtocolViolationError{Reason: "setup message received after handshake"}
	default:
		s.log.Debug("ignoring unknown control message", "type", msgType)
		return nil
	}
}

func (s *Session) handleSubscribeOK(payload []byte) error {
	ok, err := moq.ParseSubscribeOK(payload)
	if err != nil {
		return fmt.Errorf("parse SUBSCRIBE_OK: %w", err)
	}
	if _, bound := s.subscriptions.bindAlias(ok.RequestID, ok.TrackAlias); !bound {
		s.log.Debug("SUBSCRIBE_OK for unknown request", "request_id", ok.RequestID)
		return nil
	}
	s.correlation.resolve(ok.RequestID, ok)
	return nil
}

func (s *Session) handleSubscribeError(payload []byte) error {
	se, err := moq.ParseSubscribeError(payload)
	if err != nil {
		return fmt.Errorf("parse SUBSCRIBE_ERROR: %w", err)
	}
	s.subscriptions.remove(se.RequestID)
	s.correlation.reject(se.RequestID, &PeerError{ErrorCode: se.ErrorCode, ReasonPhrase: se.ReasonPhrase})
	return nil
}

func (s *Session) handlePublishDone(payload []byte) error {
	pd, err := moq.ParsePublishDone(payload)
	if err != nil {
		return fmt.Errorf("parse PUBLISH_DONE: %w", err)
	}
	s.subscriptions.remove(pd.RequestID)
	return nil
}

func (s *Session) handleUnsubscribe(payload []byte) error {
	u, err := moq.ParseUnsubscribe(payload)
	if err != nil {
		return fmt.Errorf("parse UNSUBSCRIBE: %w", err)
	}
	// An UNSUBSCRIBE from the peer targets a subscription we are serving as
	// publisher: remove it from the publication's subscriber set so it is
	// not sent any further objects or included in a later PUBLISH_DONE.
	s.publications.removeSubscriber(u.RequestID)
	s.log.Debug("peer unsubscribed", "request_id", u.RequestID)
	return nil
}

// checkPeerRequestID validates that requestID, freshly received on a
// peer-initiated request, has the parity the peer's allocator issues
// (spec.md §3: receivers validate parity on every request they process).
func (s *Session) checkPeerRequestID(requestID uint64) error {
	if !s.allocator.isPeer(requestID) {
		return &ProtocolViolationError{Reason: fmt.Sprintf("%v: request_id %d", moq.ErrBadParity, requestID)}
	}
	return nil
}

func (s *Session) handleSubscribe(payload []byte) error {
	sub, err := moq.ParseSubscribe(payload)
	if err != nil {
		return fmt.Errorf("parse SUBSCRIBE: %w", err)
	}
	if err := s.checkPeerRequestID(sub.RequestID); err != nil {
		return err
	}
	pub, ok := s.publications.find(sub.Namespace, sub.TrackName)
	if !ok {
		errPayload := moq.EncodeSubscribeError(moq.SubscribeError{
			RequestID:    sub.RequestID,
			ErrorCode:    moq.ErrorCodeProtocolViolation,
			ReasonPhrase: moq.ErrUnknownTrack.Error(),
		})
		return s.writeControl(moq.TypeSubscribeError, errPayload)
	}
	ev := &IncomingSubscribe{
		RequestID:     sub.RequestID,
		Namespace:     sub.Namespace,
		TrackName:     sub.TrackName,
		Priority:      sub.Priority,
		GroupOrder:    sub.GroupOrder,
		StartLocation: sub.StartLocation,
		pub:           pub,
	}
	sendOrDropSub(s.events.incomingSubs, ev)
	return nil
}

func (s *Session) handlePublishNamespace(payload []byte) error {
	pn, err := moq.ParsePublishNamespace(payload)
	if err != nil {
		return fmt.Errorf("parse PUBLISH_NAMESPACE: %w", err)
	}
	if err := s.checkPeerRequestID(pn.RequestID); err != nil {
		return err
	}
	sendOrDropPub(s.events.incomingPubs, NamespaceAnnouncement{Namespace: pn.Namespace})
	okPayload := moq.EncodePublishNamespaceOK(moq.PublishNamespaceOK{RequestID: pn.RequestID})
	return s.writeControl(moq.TypePublishNamespaceOK, okPayload)
}

func (s *Session) handlePublishNamespaceOK(payload []byte) error {
	ok, err := moq.ParsePublishNamespaceOK(payload)
	if err != nil {
		return fmt.Errorf("parse PUBLISH_NAMESPACE_OK: %w", err)
	}
	s.correlation.resolve(ok.RequestID, ok)
	return nil
}

func (s *Session) handlePublishNamespaceError(payload []byte) error {
	pe, err := moq.ParsePublishNamespaceError(payload)
	if err != nil {
		return fmt.Errorf("parse PUBLISH_NAMESPACE_ERROR: %w", err)
	}
	s.correlation.reject(pe.RequestID, &PeerError{ErrorCode: pe.ErrorCode, ReasonPhrase: pe.ReasonPhrase})
	return nil
}

func (s *Session) handlePublishNamespaceDone(payload []byte) error {
	pd, err := moq.ParsePublishNamespaceDone(payload)
	if err != nil {
		return fmt.Errorf("parse PUBLISH_NAMESPACE_DONE: %w", err)
	}
	sendOrDropPub(s.events.incomingPubs, NamespaceAnnouncement{
		Namespace:    pd.Namespace,
		Done:         true,
		StatusCode:   pd.StatusCode,
		ReasonPhrase: pd.ReasonPhrase,
	})
	return nil
}

func (s *Session) handleSubscribeNamespace(payload []byte) error {
	sn, err := moq.ParseSubscribeNamespace(payload)
	if err != nil {
		return fmt.Errorf("parse SUBSCRIBE_NAMESPACE: %w", err)
	}
	if err := s.checkPeerRequestID(sn.RequestID); err != nil {
		return err
	}
	okPayload := moq.EncodeSubscribeNamespaceOK(moq.SubscribeNamespaceOK{RequestID: sn.RequestID})
	if err := s.writeControl(moq.TypeSubscribeNamespaceOK, okPayload); err != nil {
		return err
	}
	for _, ns := range s.namespaces.matchingAnnounced(sn.Prefix) {
		requestID, err := s.allocator.alloc()
		if err != nil {
			s.log.Debug("cannot announce matching namespace", "namespace", ns.String(), "error", err)
			return nil
		}
		pnPayload := moq.EncodePublishNamespace(moq.PublishNamespace{RequestID: requestID, Namespace: ns})
		if err := s.writeControl(moq.TypePublishNamespace, pnPayload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleSubscribeNamespaceOK(payload []byte) error {
	ok, err := moq.ParseSubscribeNamespaceOK(payload)
	if err != nil {
		return fmt.Errorf("parse SUBSCRIBE_NAMESPACE_OK: %w", err)
	}
	s.correlation.resolve(ok.RequestID, ok)
	return nil
}

func (s *Session) handleUnsubscribeNamespace(payload []byte) error {
	u, err := moq.ParseUnsubscribeNamespace(payload)
	if err != nil {
		return fmt.Errorf("parse UNSUBSCRIBE_NAMESPACE: %w", err)
	}
	s.log.Debug("peer unsubscribed from namespace prefix", "request_id", u.RequestID)
	return nil
}

func (s *Session) handleMaxRequestID(payload []byte) error {
	m, err := moq.ParseMaxRequestID(payload)
	if err != nil {
		return fmt.Errorf("parse MAX_REQUEST_ID: %w", err)
	}
	s.allocator.setCeiling(m.RequestID)
	return nil
}

func (s *Session) handleFetch(payload []byte) error {
	f, err := moq.ParseFetch(payload)
	if err != nil {
		return fmt.Errorf("parse FETCH: %w", err)
	}
	if err := s.checkPeerRequestID(f.RequestID); err != nil {
		return err
	}
	pub, ok := s.publications.find(f.Namespace, f.TrackName)
	if !ok {
		errPayload := moq.EncodeSubscribeError(moq.SubscribeError{
			RequestID:    f.RequestID,
			ErrorCode:    moq.ErrorCodeProtocolViolation,
			ReasonPhrase: moq.ErrUnknownTrack.Error(),
		})
		return s.writeControl(moq.TypeSubscribeError, errPayload)
	}
	ev := &IncomingSubscribe{
		RequestID:     f.RequestID,
		Namespace:     f.Namespace,
		TrackName:     f.TrackName,
		Priority:      f.Priority,
		GroupOrder:    f.GroupOrder,
		StartLocation: f.StartLocation,
		pub:           pub,
	}
	sendOrDropSub(s.events.incomingSubs, ev)
	return nil
}

func (s *Session) handleFetchCancel(payload []byte) error {
	fc, err := moq.ParseFetchCancel(payload)
	if err != nil {
		return fmt.Errorf("parse FETCH_CANCEL: %w", err)
	}
	s.subscriptions.remove(fc.RequestID)
	return nil
}

func (s *Session) handleGoAway(payload []byte) error {
	ga, err := moq.ParseGoAway(payload)
	if err != nil {
		return fmt.Errorf("parse GOAWAY: %w", err)
	}
	s.setState(StateDraining, nil)
	select {
	case s.events.goAway <- GoAwayEvent{LastRequestID: ga.LastRequestID, NewURI: string(ga.NewURI), HasNewURI: ga.HasNewURI}:
	default:
	}
	return nil
}

// dataStreamLoop accepts unidirectional data streams and feeds each through
// a StreamParser, dispatching completed objects to the owning subscription.
func (s *Session) dataStreamLoop(ctx context.Context) error {
	for {
		rs, err := s.transport.AcceptUniStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("session: accept data stream: %w", err)
		}
		go s.readDataStream(rs)
	}
}

func (s *Session) readDataStream(rs ReadStream) {
	parser := moq.NewStreamParser()
	buf := make([]byte, 4096)
	for {
		n, err := rs.Read(buf)
		if n > 0 {
			objects, ferr := parser.Feed(buf[:n])
			if ferr != nil {
				s.log.Debug("data stream parse warning", "error", ferr)
			}
			if header, ok := parser.Header(); ok {
				for _, obj := range objects {
					if derr := s.subscriptions.dispatchObject(header.TrackAlias, header.GroupID, header.SubgroupID, obj); derr != nil {
						s.log.Debug("dropping object for unknown track alias", "alias", header.TrackAlias)
					}
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				s.log.Debug("data stream read error", "error", err)
			}
			if truncated := parser.Finish(); truncated {
				s.log.Debug("data stream ended with truncated tail")
			}
			return
		}
	}
}

// SendGoAway sends GOAWAY to the peer, optionally redirecting it to a new URI.
func (s *Session) SendGoAway(lastRequestID uint64, newURI string) error {
	ga := moq.GoAway{LastRequestID: lastRequestID}
	if newURI != "" {
		ga.NewURI = []byte(newURI)
		ga.HasNewURI = true
	}
	return s.writeControl(moq.TypeGoAway, moq.EncodeGoAway(ga))
}

// Close tears the session down gracefully: it sends GOAWAY (best-effort)
// and closes the underlying transport, which unblocks controlLoop and
// dataStreamLoop so Run returns and performs teardown itself. Calling
// teardown here too, instead of leaving it to Run, would race: a control
// message might still be mid-dispatch and sending on an event channel when
// closeAll closed it out from under that send.
func (s *Session) Close(reason string) error {
	_ = s.SendGoAway(0, "")
	return s.transport.Close(moq.ErrorCodeInternal, reason)
}

func (s *Session) teardown(cause error) {
	s.teardownOnce.Do(func() {
		s.setState(StateClosed, cause)
		s.correlation.closeAll(cause)
		s.subscriptions.closeAll()
		s.events.closeAll()
	})
}
