package handlers

import (
	"mime/multipart"
	"net/url"

	"github.com/anjiri1684/campus_manager/apperrors"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/gofiber/fiber/v2"
)

const maxFilesPerUpload = 10

// store validates one multipart file and hands it to the configured uploader.
func (h *Handler) store(c *fiber.Ctx, fh *multipart.FileHeader, kind storage.Kind, folder string) (*storage.File, error) {
	mimeType, err := storage.Validate(fh, kind, h.cfg.Storage.MaxFileSize)
	if err != nil {
		return nil, storageError(err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to read upload")
	}
	defer f.Close()

	file, err := h.uploader.Upload(c.UserContext(), f, storage.UploadOptions{
		Filename:    fh.Filename,
		ContentType: mimeType,
		Folder:      folder,
	})
	if err != nil {
		return nil, storageError(err)
	}
	h.log.Info("File uploaded", map[string]interface{}{
		"publicId": file.PublicID, "backend": h.uploader.Name(), "userId": currentUser(c).ID,
	})
	return file, nil
}

func (h *Handler) uploadOne(c *fiber.Ctx, kind storage.Kind, folder string) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.BadRequest("No file uploaded")
	}
	file, err := h.store(c, fh, kind, folder)
	if err != nil {
		return err
	}
	return okMessage(c, "File uploaded successfully", file)
}

func (h *Handler) UploadSingle(c *fiber.Ctx) error {
	return h.uploadOne(c, storage.KindAny, c.FormValue("folder"))
}

func (h *Handler) UploadImage(c *fiber.Ctx) error {
	return h.uploadOne(c, storage.KindImage, "images")
}

func (h *Handler) UploadDocument(c *fiber.Ctx) error {
	return h.uploadOne(c, storage.KindDocument, "documents")
}

func (h *Handler) UploadMultiple(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.BadRequest("No files uploaded")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return apperrors.BadRequest("No files uploaded")
	}
	if len(headers) > maxFilesPerUpload {
		return apperrors.BadRequest("Too many files. At most 10 files per request")
	}

	files := make([]*storage.File, 0, len(headers))
	for _, fh := range headers {
		file, err := h.store(c, fh, storage.KindAny, c.FormValue("folder"))
		if err != nil {
			return err
		}
		files = append(files, file)
	}
	return okMessage(c, "Files uploaded successfully", files)
}

func publicIDParam(c *fiber.Ctx) (string, error) {
	id, err := url.PathUnescape(c.Params("publicId"))
	if err != nil || id == "" {
		return "", apperrors.BadRequest("Invalid file identifier")
	}
	return id, nil
}

func (h *Handler) DeleteUpload(c *fiber.Ctx) error {
	id, err := publicIDParam(c)
	if err != nil {
		return err
	}
	if err := h.uploader.Delete(c.UserContext(), id); err != nil {
		return storageError(err)
	}
	return okMessage(c, "File deleted successfully", nil)
}

func (h *Handler) UploadInfo(c *fiber.Ctx) error {
	id, err := publicIDParam(c)
	if err != nil {
		return err
	}
	file, err := h.uploader.Info(c.UserContext(), id)
	if err != nil {
		return storageError(err)
	}
	return ok(c, file)
}

// UploadSignature issues a signed payload for uploading straight to the media store.
func (h *Handler) UploadSignature(c *fiber.Ctx) error {
	signed, err := h.uploader.Sign()
	if err != nil {
		return storageError(err)
	}
	return ok(c, signed)
}
