package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benmeehan/live-location/pkg/file"
)

// Identity holds the tracked user's identifier and contact numbers.
type Identity struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name,omitempty"`
	UserPhone  string `json:"user_phone,omitempty"`
	AdminPhone string `json:"admin_phone,omitempty"`
}

// UserInfoInterface defines methods for managing the reporter's identity.
type UserInfoInterface interface {
	LoadUserInfo() error
	GetUserID() string
	GetIdentity() Identity
}

// UserInfo manages the user identity and its associated file operations.
type UserInfo struct {
	UserInfoFile string
	identity     Identity
	fileOps      file.FileOperations
}

// NewUserInfo initializes a new UserInfo instance.
func NewUserInfo(filePath string, fileOps file.FileOperations) *UserInfo {
	return &UserInfo{
		UserInfoFile: filePath,
		fileOps:      fileOps,
	}
}

// LoadUserInfo reads the identity file. A user id is mandatory, since every
// published location is keyed by it.
func (u *UserInfo) LoadUserInfo() error {
	var id Identity
	if err := u.fileOps.ReadJsonFile(u.UserInfoFile, &id); err != nil {
		return fmt.Errorf("failed to read identity file %s: %w", u.UserInfoFile, err)
	}

	id.UserID = strings.TrimSpace(id.UserID)
	if id.UserID == "" {
		return errors.New("identity file has no user_id")
	}
	u.identity = id
	return nil
}

// GetUserID returns the tracked user's id.
func (u *UserInfo) GetUserID() string {
	return u.identity.UserID
}

// GetIdentity returns a copy of the loaded identity.
func (u *UserInfo) GetIdentity() Identity {
	return u.identity
}
