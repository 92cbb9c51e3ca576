// Package wallet holds user accounts on the node: password login, session
// tokens and writes signed and optionally encrypted on the user's behalf.
package wallet

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/cryptox"
	"github.com/firecat-notes/firecat/internal/gateway"
	"github.com/firecat-notes/firecat/internal/identity"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node/auth"
	"github.com/firecat-notes/firecat/internal/node/users"
	"github.com/firecat-notes/firecat/internal/uri"
	"github.com/firecat-notes/firecat/internal/visibility"
	"github.com/firecat-notes/firecat/internal/wire"
)

const (
	saltSize      = 16
	keyIterations = 100000
	sealKeySalt   = "firecat-wallet-identity"
)

var (
	ErrUnknownApp         = fmt.Errorf("%w: unknown app key", common.ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", common.ErrUnauthorized)
	ErrUserExists         = fmt.Errorf("%w: username is taken", common.ErrAlreadyExists)
)

// RecordStore is where proxied writes land. *records.Service implements it,
// so proxied writes pass the same ownership checks as direct ones.
type RecordStore interface {
	Write(ctx context.Context, rawURI string, value json.RawMessage) error
	Read(ctx context.Context, rawURI string) (*wire.Record, error)
}

type credentials struct {
	Username string `validate:"required,min=3,max=64,printascii,excludesall=/:"`
	Password string `validate:"required,min=6,max=256"`
}

type Service struct {
	repo       users.Repository
	records    RecordStore
	log        logging.Logger
	validate   *validator.Validate
	appKey     string
	masterKey  []byte
	sealKey    []byte
	jwtSecret  []byte
	ttl        time.Duration
	iterations int
}

func NewService(repo users.Repository, records RecordStore, cfg config.WalletConfig, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	master := []byte(cfg.MasterKey)
	return &Service{
		repo:       repo,
		records:    records,
		log:        log,
		validate:   validator.New(),
		appKey:     cfg.AppKey,
		masterKey:  master,
		sealKey:    cryptox.DeriveKey(master, []byte(sealKeySalt), keyIterations),
		jwtSecret:  []byte(cfg.JWTSecret),
		ttl:        cfg.SessionTTL,
		iterations: keyIterations,
	}
}

func (s *Service) checkRequest(appKey, username, password string) error {
	if appKey != s.appKey {
		return ErrUnknownApp
	}
	if err := s.validate.Struct(credentials{Username: username, Password: password}); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	return nil
}

// Signup creates an account with a fresh identity and opens a session.
func (s *Service) Signup(ctx context.Context, req wire.SignupRequest) (*wire.Session, error) {
	if err := s.checkRequest(req.AppKey, req.Username, req.Password); err != nil {
		return nil, err
	}

	salt := common.GenerateRandByteArray(saltSize)
	master := cryptox.DeriveMasterKey([]byte(req.Password), salt)
	verifier := cryptox.MakeVerifier(master)
	common.WipeByteArray(master)

	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(id.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	sealed, nonce, err := cryptox.Seal(seed, s.sealKey)
	common.WipeByteArray(seed)
	if err != nil {
		return nil, fmt.Errorf("seal identity: %w", err)
	}

	user, err := s.repo.Create(ctx, &users.User{
		AppKey:    req.AppKey,
		UserName:  req.Username,
		Salt:      salt,
		Verifier:  verifier,
		Pubkey:    id.PublicKeyHex,
		SealedKey: sealed,
		KeyNonce:  nonce,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "wallet user created", "username", user.UserName, "pubkey", user.Pubkey)
	return s.issue(user, uuid.NewString())
}

func (s *Service) checkVerifier(verifier []byte, verifierCandidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, verifierCandidate) == 1
}

// Login checks the password and opens a session. Unknown users cost the
// same key derivation as known ones.
func (s *Service) Login(ctx context.Context, req wire.LoginRequest) (*wire.Session, error) {
	if err := s.checkRequest(req.AppKey, req.Username, req.Password); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByLogin(ctx, req.AppKey, req.Username)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	salt := common.GenerateRandByteArray(saltSize)
	if user != nil {
		salt = user.Salt
	}
	master := cryptox.DeriveMasterKey([]byte(req.Password), salt)
	candidate := cryptox.MakeVerifier(master)
	common.WipeByteArray(master)

	if user == nil || !s.checkVerifier(user.Verifier, candidate) {
		s.log.Info(ctx, "wallet login rejected", "username", req.Username)
		return nil, ErrInvalidCredentials
	}

	sessionID := req.SessionKey
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return s.issue(user, sessionID)
}

func (s *Service) issue(user *users.User, sessionID string) (*wire.Session, error) {
	token, err := auth.GenerateToken(auth.Subject{
		Username:  user.UserName,
		Pubkey:    user.Pubkey,
		SessionID: sessionID,
	}, s.jwtSecret, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &wire.Session{
		Username:  user.UserName,
		Pubkey:    user.Pubkey,
		Token:     token,
		ExpiresIn: int64(s.ttl / time.Second),
	}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(token string) (auth.Subject, error) {
	sub, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return auth.Subject{}, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	return sub, nil
}

// identityOf unseals the account key of sub.
func (s *Service) identityOf(ctx context.Context, sub auth.Subject) (identity.Identity, error) {
	user, err := s.repo.GetUserByLogin(ctx, s.appKey, sub.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return identity.Identity{}, fmt.Errorf("%w: account no longer exists", common.ErrUnauthorized)
		}
		return identity.Identity{}, err
	}
	if user.Pubkey != sub.Pubkey {
		return identity.Identity{}, fmt.Errorf("%w: session does not match account", common.ErrUnauthorized)
	}

	seed, err := cryptox.Open(user.SealedKey, user.KeyNonce, s.sealKey)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("unseal identity of %s: %w", user.UserName, err)
	}
	defer common.WipeByteArray(seed)
	return identity.FromPrivateKeyHex(hex.EncodeToString(seed))
}

// userKey derives the key for private records of username.
func (s *Service) userKey(username string) []byte {
	return cryptox.DeriveKey(s.masterKey, []byte(username), s.iterations)
}

func (s *Service) ownedAddress(sub auth.Subject, rawURI string) (uri.Address, error) {
	addr, err := uri.Parse(rawURI)
	if err != nil {
		return uri.Address{}, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	if account, ok := addr.Account(); !ok || account != sub.Pubkey {
		return uri.Address{}, fmt.Errorf("%w: %s is outside the account of %s", common.ErrForbidden, addr, sub.Username)
	}
	return addr, nil
}

// ProxyWrite signs req.Data with the user's identity and stores it. With
// Encrypt set the data is first sealed as a private payload.
func (s *Service) ProxyWrite(ctx context.Context, sub auth.Subject, req wire.ProxyWriteRequest) error {
	addr, err := s.ownedAddress(sub, req.URI)
	if err != nil {
		return err
	}
	if !json.Valid(req.Data) {
		return fmt.Errorf("%w: data is not JSON", common.ErrInvalidRequest)
	}

	id, err := s.identityOf(ctx, sub)
	if err != nil {
		return err
	}

	var payload any = req.Data
	if req.Encrypt {
		key := s.userKey(sub.Username)
		ct, nonce, err := cryptox.EncryptEntry(req.Data, key)
		common.WipeByteArray(key)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", addr, err)
		}
		payload = gateway.EncryptedPayload{
			Encrypted:  true,
			Visibility: visibility.Private,
			Data:       base64.StdEncoding.EncodeToString(ct),
			Nonce:      base64.StdEncoding.EncodeToString(nonce),
		}
	}

	env, err := identity.Sign(payload, id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.records.Write(ctx, addr.String(), raw)
}

// ProxyRead returns the stored record at req.URI and its plaintext payload.
// Private payloads are decrypted with the user's key.
func (s *Service) ProxyRead(ctx context.Context, sub auth.Subject, req wire.ProxyReadRequest) (*wire.Record, json.RawMessage, error) {
	addr, err := s.ownedAddress(sub, req.URI)
	if err != nil {
		return nil, nil, err
	}

	rec, err := s.records.Read(ctx, addr.String())
	if err != nil {
		return nil, nil, err
	}

	payload, _ := identity.Unwrap(rec.Data)
	p, ok := gateway.IsEncrypted(payload)
	if !ok || p.Visibility != visibility.Private {
		return rec, payload, nil
	}

	ct, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: data is not base64", cryptox.ErrDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nonce is not base64", cryptox.ErrDecryptionFailed)
	}

	key := s.userKey(sub.Username)
	defer common.WipeByteArray(key)
	var plain json.RawMessage
	if err := cryptox.DecryptEntry(ct, nonce, key, &plain); err != nil {
		return nil, nil, err
	}
	return rec, plain, nil
}
