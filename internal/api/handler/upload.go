package handler

import (
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
	"github.com/mentorpal/mentor-upload-service/internal/usecase"
)

// maxUploadBytes bounds the in-memory portion of a multipart upload; video
// parts spill to disk beyond this (net/http's multipart reader default).
const maxUploadBytes = 32 << 20

// trimWindow is the wire shape of an optional ingestion/existing trim.
type trimWindow struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

type uploadAnswerBody struct {
	Mentor              string      `json:"mentor" validate:"required,min=5,max=60"`
	Question            string      `json:"question" validate:"required,min=5,max=60"`
	Trim                *trimWindow `json:"trim" validate:"omitempty"`
	HasEditedTranscript bool        `json:"hasEditedTranscript"`
}

type trimExistingUploadBody struct {
	Mentor   string     `json:"mentor" validate:"required,min=5,max=60"`
	Question string     `json:"question" validate:"required,min=5,max=60"`
	Trim     trimWindow `json:"trim" validate:"required"`
}

type regenVTTBody struct {
	Mentor   string `json:"mentor" validate:"required,min=5,max=60"`
	Question string `json:"question" validate:"required,min=5,max=60"`
}

type cancelBody struct {
	Mentor          string   `json:"mentor" validate:"required,min=5,max=60"`
	Question        string   `json:"question" validate:"required,min=5,max=60"`
	TaskIDsToCancel []string `json:"task_ids_to_cancel" validate:"required,min=1"`
}

type transferAnswerBody struct {
	Mentor   string `json:"mentor" validate:"required,min=5,max=60"`
	Question string `json:"question" validate:"required,min=5,max=60"`
}

type importMentorBody struct {
	Mentor                    string `json:"mentor" validate:"required,min=5,max=60"`
	MentorExportJSON          string `json:"mentorExportJson" validate:"required"`
	ReplacedMentorDataChanges string `json:"replacedMentorDataChanges"`
}

// UploadHandlers wires C4/C6/C7's HTTP surface (spec.md §6) to the usecase
// services, matching the validation-then-dispatch shape of the teacher's
// own handlers.
type UploadHandlers struct {
	dispatch    *usecase.DispatchService
	coordinator *usecase.CoordinatorService
	metadata    repository.MetadataClient
	storage     repository.ObjectStorage
	bus         repository.MessageBus
	validate    *validator.Validate
	uploadRoot  string
	urlBase     string
	forceHTTPS  bool
}

func NewUploadHandlers(dispatch *usecase.DispatchService, coordinator *usecase.CoordinatorService, metadata repository.MetadataClient, storage repository.ObjectStorage, bus repository.MessageBus, uploadRoot, urlBase string, forceHTTPS bool) *UploadHandlers {
	return &UploadHandlers{
		dispatch:    dispatch,
		coordinator: coordinator,
		metadata:    metadata,
		storage:     storage,
		bus:         bus,
		validate:    validator.New(),
		uploadRoot:  uploadRoot,
		urlBase:     urlBase,
		forceHTTPS:  forceHTTPS,
	}
}

// statusURL joins the request's URL root with a status path, rewriting
// http:// to https:// when STATUS_URL_FORCE_HTTPS is set (spec.md §6).
func (h *UploadHandlers) statusURL(r *http.Request, suffix string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	root := scheme + "://" + r.Host + "/"
	if h.forceHTTPS {
		root = strings.Replace(root, "http://", "https://", 1)
	}
	return root + suffix
}

// Ping handles GET /upload/ping.
func (h *UploadHandlers) Ping(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"data": "pong"})
}

// UploadAnswer handles POST /upload/answer.
func (h *UploadHandlers) UploadAnswer(w http.ResponseWriter, r *http.Request) {
	var req uploadAnswerBody
	videoFile, videoHeader, err := h.parseMultipartBody(r, &req)
	if err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	defer videoFile.Close()
	if err := h.validate.Struct(&req); err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	if err := os.MkdirAll(h.uploadRoot, 0o755); err != nil {
		Error(w, http.StatusInternalServerError, "InternalError", "failed to prepare upload directory")
		return
	}
	scratchPath := usecase.ScratchPath(h.uploadRoot, req.Mentor, req.Question, filepath.Ext(videoHeader.Filename))
	if err := saveMultipartFile(videoFile, scratchPath); err != nil {
		Error(w, http.StatusInternalServerError, "InternalError", "failed to persist upload")
		return
	}

	dispatchReq := usecase.UploadAnswerRequest{
		MentorID:            req.Mentor,
		QuestionID:          req.Question,
		HasEditedTranscript: req.HasEditedTranscript,
		VideoPath:           scratchPath,
	}
	if req.Trim != nil {
		dispatchReq.Trim = &usecase.Trim{StartS: req.Trim.Start, EndS: req.Trim.End}
	}

	result, err := h.dispatch.Dispatch(r.Context(), dispatchReq)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"transcodeWebTask":    result.TranscodeWebTask,
			"transcodeMobileTask": result.TranscodeMobileTask,
			"transcribeTask":      result.TranscribeTask,
			"trimUploadTask":      result.TrimUploadTask,
			"statusUrl":           h.statusURL(r, "upload/answer/status/"+req.Mentor+"/"+req.Question),
		},
	})
}

// TrimExistingUpload handles POST /upload/answer/trim_existing_upload.
func (h *UploadHandlers) TrimExistingUpload(w http.ResponseWriter, r *http.Request) {
	var body trimExistingUploadBody
	if !h.decodeJSONBody(w, r, &body) {
		return
	}

	taskRef, err := h.coordinator.TrimExistingUpload(r.Context(), body.Mentor, body.Question, usecase.Trim{
		StartS: body.Trim.Start,
		EndS:   body.Trim.End,
	})
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"taskList":  []any{taskRef},
			"statusUrl": h.statusURL(r, "upload/answer/status/"+body.Mentor+"/"+body.Question),
		},
	})
}

// RegenVTT handles POST /upload/answer/regen_vtt.
func (h *UploadHandlers) RegenVTT(w http.ResponseWriter, r *http.Request) {
	var body regenVTTBody
	if !h.decodeJSONBody(w, r, &body) {
		return
	}

	ok, err := h.coordinator.RegenVTT(r.Context(), body.Mentor, body.Question)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"regen_vtt": ok}})
}

// Cancel handles POST /upload/answer/cancel.
func (h *UploadHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if !h.decodeJSONBody(w, r, &body) {
		return
	}

	cancelledIDs, err := h.coordinator.Cancel(r.Context(), body.Mentor, body.Question, body.TaskIDsToCancel)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":           uuid.NewString(),
		"cancelledIds": cancelledIDs,
	}})
}

// Status handles GET /upload/answer/status/{mentor}/{question}: a direct
// passthrough of the metadata service's current UploadTask, per spec.md §6's
// statusUrl contract.
func (h *UploadHandlers) Status(w http.ResponseWriter, r *http.Request, mentorID, questionID string) {
	task, err := h.metadata.FetchTask(r.Context(), mentorID, questionID)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	if !task.Found {
		Error(w, http.StatusNotFound, "NotFoundError", "no in-progress or completed upload for this answer")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": task})
}

// TransferAnswer handles POST /upload/transfer: installs a finalization
// TaskEntry and fans a transfer job out asynchronously rather than blocking
// the request on the download/re-upload (spec.md §4.7's "answer transfer").
// The transfer worker drives the entry through IN_PROGRESS to DONE/FAILED.
func (h *UploadHandlers) TransferAnswer(w http.ResponseWriter, r *http.Request) {
	var body transferAnswerBody
	if !h.decodeJSONBody(w, r, &body) {
		return
	}

	taskID := uuid.NewString()
	tasks := []repository.TaskEntryView{
		{TaskName: string(model.TaskNameFinalization), TaskID: taskID, Status: model.StatusQueued.String()},
	}
	if err := h.metadata.UploadAnswerAndTaskUpdate(r.Context(), body.Mentor, body.Question, repository.AnswerPatch{}, tasks); err != nil {
		writeUsecaseError(w, err)
		return
	}

	job := repository.TransferJob{
		Kind:       usecase.TransferKindAnswer,
		MentorID:   body.Mentor,
		QuestionID: body.Question,
		TaskID:     taskID,
	}
	if err := h.bus.PublishTransferJob(r.Context(), job); err != nil {
		Error(w, http.StatusInternalServerError, "Exception", "failed to schedule transfer")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":        taskID,
		"statusUrl": h.statusURL(r, "upload/transfer/status/"+taskID),
	}})
}

// ImportMentor handles POST /upload/transfer/mentor: fans the two-phase
// mentor import job out the same way (spec.md §4.7's "mentor import").
func (h *UploadHandlers) ImportMentor(w http.ResponseWriter, r *http.Request) {
	var body importMentorBody
	if !h.decodeJSONBody(w, r, &body) {
		return
	}

	taskID := uuid.NewString()
	job := repository.TransferJob{
		Kind:                      usecase.TransferKindMentor,
		MentorID:                  body.Mentor,
		TaskID:                    taskID,
		MentorExportJSON:          body.MentorExportJSON,
		ReplacedMentorDataChanges: body.ReplacedMentorDataChanges,
	}
	if err := h.bus.PublishTransferJob(r.Context(), job); err != nil {
		Error(w, http.StatusInternalServerError, "Exception", "failed to schedule mentor import")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"statusUrl": h.statusURL(r, "upload/transfer/status/"+taskID),
	}})
}

// Thumbnail handles POST /upload/thumbnail.
func (h *UploadHandlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", "malformed multipart body")
		return
	}
	mentorID := r.FormValue("mentor")
	if mentorID == "" {
		Error(w, http.StatusBadRequest, "ValidationError", "missing required param mentor")
		return
	}
	file, _, err := r.FormFile("thumbnail")
	if err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", "missing required file part thumbnail")
		return
	}
	defer file.Close()

	key := objectkey.Thumbnail(mentorID, thumbnailTimestamp())
	if err := h.storage.Put(r.Context(), key, file, "image/png"); err != nil {
		Error(w, http.StatusInternalServerError, "StorageError", err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"thumbnail": objectkey.URL(h.urlBase, key)}})
}

// thumbnailTimestamp is its own function so a future test can substitute a
// fixed instant without touching Thumbnail's body.
var thumbnailTimestamp = time.Now

func (h *UploadHandlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		Error(w, http.StatusBadRequest, "ValidationError", err.Error())
		return false
	}
	return true
}

// parseMultipartBody reads the "body" JSON field and the "video" file part
// of a multipart/form-data request, matching spec.md §6's payload shape.
func (h *UploadHandlers) parseMultipartBody(r *http.Request, dst any) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, apperror.Validation("malformed multipart body")
	}
	if err := json.Unmarshal([]byte(r.FormValue("body")), dst); err != nil {
		return nil, nil, apperror.Validation("malformed body field")
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		return nil, nil, apperror.Validation("missing required file part video")
	}
	return file, header, nil
}

func saveMultipartFile(src multipart.File, dstPath string) error {
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = dst.ReadFrom(src)
	return err
}

// writeUsecaseError maps the apperror taxonomy onto spec.md §6's error
// surface: validation and conflict failures are 400, auth is 401, and
// everything else is a JSON-wrapped 500 labeled "Exception".
func writeUsecaseError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	slog.Warn("upload request failed", "kind", kind, "error", err)
	switch kind {
	case apperror.KindValidation, apperror.KindConflict:
		Error(w, http.StatusBadRequest, string(kind), err.Error())
	case apperror.KindAuth:
		Error(w, http.StatusUnauthorized, string(kind), err.Error())
	default:
		Error(w, http.StatusInternalServerError, "Exception", err.Error())
	}
}
