package api

// Request/response DTOs for the HTTP API surface. Struct tags drive
// go-playground/validator the way the teacher's models package does for its
// Create/Update request types.

type createSourceRequest struct {
	Name            string  `json:"name" validate:"required"`
	CaldavURL       string  `json:"caldav_url" validate:"required,url"`
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	ICSPath         string  `json:"ics_path" validate:"required"`
	PublicICSPath   *string `json:"public_ics_path,omitempty"`
	PublicICS       bool    `json:"public_ics"`
	SyncIntervalSec int     `json:"sync_interval_secs" validate:"gte=0"`
}

type updateSourceRequest struct {
	Name            *string `json:"name,omitempty"`
	CaldavURL       *string `json:"caldav_url,omitempty" validate:"omitempty,url"`
	Username        *string `json:"username,omitempty"`
	Password        *string `json:"password,omitempty"`
	ICSPath         *string `json:"ics_path,omitempty"`
	PublicICSPath   *string `json:"public_ics_path,omitempty"`
	PublicICS       *bool   `json:"public_ics,omitempty"`
	SyncIntervalSec *int    `json:"sync_interval_secs,omitempty" validate:"omitempty,gte=0"`
}

type createDestinationRequest struct {
	Name            string `json:"name" validate:"required"`
	ICSUrl          string `json:"ics_url" validate:"required,url"`
	CaldavURL       string `json:"caldav_url" validate:"required,url"`
	CalendarName    string `json:"calendar_name" validate:"required"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SyncIntervalSec int    `json:"sync_interval_secs" validate:"gte=0"`
	SyncAll         bool   `json:"sync_all"`
	KeepLocal       bool   `json:"keep_local"`
}

type updateDestinationRequest struct {
	Name            *string `json:"name,omitempty"`
	ICSUrl          *string `json:"ics_url,omitempty" validate:"omitempty,url"`
	CaldavURL       *string `json:"caldav_url,omitempty" validate:"omitempty,url"`
	CalendarName    *string `json:"calendar_name,omitempty"`
	Username        *string `json:"username,omitempty"`
	Password        *string `json:"password,omitempty"`
	SyncIntervalSec *int    `json:"sync_interval_secs,omitempty" validate:"omitempty,gte=0"`
	SyncAll         *bool   `json:"sync_all,omitempty"`
	KeepLocal       *bool   `json:"keep_local,omitempty"`
}

type createSourcePathRequest struct {
	Path     string `json:"path" validate:"required"`
	IsPublic bool   `json:"is_public"`
}

type updateSourcePathRequest struct {
	Path     *string `json:"path,omitempty"`
	IsPublic *bool   `json:"is_public,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errResp(msg string) errorResponse {
	return errorResponse{Status: "error", Message: msg}
}
