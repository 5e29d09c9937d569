package web

import (
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
)

// popupSession is the popup of one tab. It lives while at least one
// request for the tab is in flight, so concurrent actions share its
// in-flight guard.
type popupSession struct {
	ctrl *popup.Controller
	view *popup.StateView
	refs int
}

// acquirePopup returns the tab's session, creating and activating it if
// none is open. An open session is retargeted at the request URL and
// source.
func (s *Server) acquirePopup(req PopupRequest,
	source extract.Source) *popupSession {

	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	sess, ok := s.popups[req.TabID]
	if !ok {
		view := popup.NewStateView()
		sess = &popupSession{
			view: view,
			ctrl: popup.New(popup.Config{
				Cache:      s.deps.Cache,
				Source:     source,
				Summarizer: s.deps.Summarizer,
				Sender:     s.deps.Notifier,
				View:       view,
				Recorder:   s.deps.Recorder,
				Log:        s.log,
			}, popup.TabContext{TabID: req.TabID, URL: req.URL}),
		}
		sess.ctrl.Activate()
		s.popups[req.TabID] = sess
	} else {
		sess.ctrl.Retarget(req.URL, source)
	}
	sess.refs++

	return sess
}

func (s *Server) releasePopup(tab notify.TabID, sess *popupSession) {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	sess.refs--
	if sess.refs == 0 && s.popups[tab] == sess {
		delete(s.popups, tab)
	}
}

// openPopups returns the number of live popup sessions.
func (s *Server) openPopups() int {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	return len(s.popups)
}
