package api

import "net/http"

// registerRoutes builds the full route table. Order matters: more specific
// patterns are registered before their looser siblings, first match wins.
func (s *Server) registerRoutes() {
	r := s.router
	const jsonCT = "application/json"

	// Public, unauthenticated endpoints.
	r.Handle(http.MethodGet, `/api/configLocale`, false, "", s.handleConfigLocale)
	r.Handle(http.MethodPost, `/api/auth/login`, false, jsonCT, s.handleAuthLogin)
	r.Handle(http.MethodPost, `/api/auth/refresh`, false, jsonCT, s.handleAuthRefresh)
	// Status reports whether the caller is authenticated, so it cannot sit
	// behind the auth layer itself; the handler probes the gate directly.
	r.Handle(http.MethodGet, `/api/auth/status`, false, "", s.handleAuthStatus)
	// The pairing client is by definition unauthenticated; PIN verification
	// inside the handshake is its gate.
	r.Handle(http.MethodPost, `/api/pair`, false, jsonCT, s.handlePair)

	// PIN/OTP entry comes from the logged-in web UI.
	r.Handle(http.MethodPost, `/api/pin`, true, jsonCT, s.handlePin)
	r.Handle(http.MethodPost, `/api/otp`, true, jsonCT, s.handleOTP)

	// Session/auth endpoints.
	r.Handle(http.MethodPost, `/api/auth/logout`, true, "", s.handleAuthLogout)
	r.Handle(http.MethodGet, `/api/auth/sessions`, true, "", s.handleAuthSessions)
	r.Handle(http.MethodDelete, `/api/auth/sessions/(?P<hash>[A-Fa-f0-9]+)`, true, "", s.handleAuthSessionDelete)
	r.Handle(http.MethodPost, `/api/password`, true, jsonCT, s.handleChangePassword)

	r.Handle(http.MethodGet, `/api/session/status`, true, "", s.handleSessionStatus)
	r.Handle(http.MethodGet, `/api/metadata`, true, "", s.handleMetadata)

	// Apps.
	r.Handle(http.MethodGet, `/api/apps`, true, "", s.handleGetApps)
	r.Handle(http.MethodPost, `/api/apps`, true, jsonCT, s.handleSaveApp)
	r.Handle(http.MethodPost, `/api/apps/reorder`, true, jsonCT, s.handleReorderApps)
	r.Handle(http.MethodPost, `/api/apps/delete`, true, jsonCT, s.handleDeleteApp)
	r.Handle(http.MethodDelete, `/api/apps/(?P<index>[0-9]+)`, true, "", s.handleDeleteAppByIndex)
	r.Handle(http.MethodGet, `/api/apps/(?P<uuid>[A-Fa-f0-9-]+)/cover`, true, "", s.handleGetAppCover)
	r.Handle(http.MethodPost, `/api/apps/launch`, true, jsonCT, s.handleLaunchApp)
	r.Handle(http.MethodPost, `/api/apps/close`, true, jsonCT, s.handleCloseApp)
	r.Handle(http.MethodPost, `/api/apps/purge_autosync`, true, "", s.handlePurgeAutosynced)

	// Config.
	r.Handle(http.MethodGet, `/api/config`, true, "", s.handleGetConfig)
	r.Handle(http.MethodPost, `/api/config`, true, jsonCT, s.handleSaveConfig)
	r.Handle(http.MethodPatch, `/api/config`, true, jsonCT, s.handlePatchConfig)
	r.Handle(http.MethodPost, `/api/restart`, true, jsonCT, s.handleRestart)
	r.Handle(http.MethodPost, `/api/quit`, true, jsonCT, s.handleQuit)

	// Paired clients.
	r.Handle(http.MethodGet, `/api/clients/list`, true, "", s.handleListClients)
	r.Handle(http.MethodPost, `/api/clients/update`, true, jsonCT, s.handleUpdateClient)
	r.Handle(http.MethodPost, `/api/clients/unpair`, true, jsonCT, s.handleUnpairClient)
	r.Handle(http.MethodPost, `/api/clients/unpair-all`, true, jsonCT, s.handleUnpairAll)
	r.Handle(http.MethodPost, `/api/clients/disconnect`, true, jsonCT, s.handleDisconnectClient)
	r.Handle(http.MethodGet, `/api/clients/hdr-profiles`, true, "", s.handleHdrProfiles)

	// Display devices / golden restore / platform health.
	r.Handle(http.MethodGet, `/api/display-devices`, true, "", s.handleDisplayDevices)
	r.Handle(http.MethodPost, `/api/display/export_golden`, true, "", s.handleExportGolden)
	r.Handle(http.MethodGet, `/api/display/golden_status`, true, "", s.handleGoldenStatus)
	r.Handle(http.MethodDelete, `/api/display/golden`, true, "", s.handleDeleteGolden)
	r.Handle(http.MethodGet, `/api/framegen/edid-refresh`, true, "", s.handleFramegenEdidRefresh)
	r.Handle(http.MethodGet, `/api/health/vigem`, true, "", s.handleVigemHealth)

	// Logs.
	r.Handle(http.MethodGet, `/api/logs`, true, "", s.handleGetLogs)
	r.Handle(http.MethodGet, `/api/logs/export`, true, "", s.handleExportLogs)
	r.Handle(http.MethodGet, `/api/logs/export_crash`, true, "", s.handleExportCrashLogs)

	// Tokens.
	r.Handle(http.MethodGet, `/api/tokens`, true, "", s.handleListTokens)
	r.Handle(http.MethodPost, `/api/tokens`, true, jsonCT, s.handleCreateToken)
	r.Handle(http.MethodDelete, `/api/tokens/(?P<hash>[A-Fa-f0-9]+)`, true, "", s.handleRevokeToken)

	// WebRTC sessions.
	r.Handle(http.MethodGet, `/api/webrtc/sessions`, true, "", s.handleListSessions)
	r.Handle(http.MethodPost, `/api/webrtc/sessions`, true, jsonCT, s.handleCreateSession)
	r.Handle(http.MethodDelete, `/api/webrtc/sessions/(?P<id>[^/]+)`, true, "", s.handleCloseSession)
	r.Handle(http.MethodPost, `/api/webrtc/sessions/(?P<id>[^/]+)/offer`, true, jsonCT, s.handleSetOffer)
	r.Handle(http.MethodGet, `/api/webrtc/sessions/(?P<id>[^/]+)/answer`, true, "", s.handleGetAnswer)
	r.Handle(http.MethodPost, `/api/webrtc/sessions/(?P<id>[^/]+)/ice`, true, jsonCT, s.handleAddICE)
	r.Handle(http.MethodGet, `/api/webrtc/sessions/(?P<id>[^/]+)/ice/stream`, true, "", s.handleICEStream)
	r.Handle(http.MethodGet, `/api/webrtc/sessions/(?P<id>[^/]+)/ws`, true, "", s.handleSessionWS)

	// Playnite.
	r.Handle(http.MethodGet, `/api/playnite/status`, true, "", s.handlePlayniteStatus)
	r.Handle(http.MethodPost, `/api/playnite/sync`, true, "", s.handlePlayniteSync)
}
