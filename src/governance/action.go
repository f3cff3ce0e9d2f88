package governance

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ActionKind names a variant of Action.
type ActionKind string

const (
	ActionTransfer     ActionKind = "transfer"
	ActionConfigChange ActionKind = "config_change"
	ActionAddMember    ActionKind = "add_member"
	ActionRemoveMember ActionKind = "remove_member"
	ActionCustom       ActionKind = "custom"
)

// Action is the effect a proposal performs once executed. The set of
// implementations is closed; see Dispatcher.
type Action interface {
	Kind() ActionKind
	validate() error
}

// Transfer moves Amount from the unit treasury to Recipient.
type Transfer struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// ConfigChange replaces the unit parameters that are set.
type ConfigChange struct {
	VotingPeriod        *time.Duration `json:"votingPeriod,omitempty"`
	TimelockDelay       *time.Duration `json:"timelockDelay,omitempty"`
	QuorumThresholdBp   *uint64        `json:"quorumThresholdBp,omitempty"`
	ApprovalThresholdBp *uint64        `json:"approvalThresholdBp,omitempty"`
}

// AddMember registers Member with Power.
type AddMember struct {
	Member string `json:"member"`
	Power  uint64 `json:"power"`
}

// RemoveMember deactivates Member.
type RemoveMember struct {
	Member string `json:"member"`
}

// Custom hands Data to the named external Target without interpreting it.
type Custom struct {
	Target string `json:"target"`
	Data   []byte `json:"data"`
}

func (Transfer) Kind() ActionKind     { return ActionTransfer }
func (ConfigChange) Kind() ActionKind { return ActionConfigChange }
func (AddMember) Kind() ActionKind    { return ActionAddMember }
func (RemoveMember) Kind() ActionKind { return ActionRemoveMember }
func (Custom) Kind() ActionKind       { return ActionCustom }

func (a Transfer) validate() error {
	if strings.TrimSpace(a.Recipient) == "" {
		return errorf(CodeInvalidParameter, "transfer recipient is required")
	}
	if a.Amount == 0 {
		return errorf(CodeInvalidParameter, "transfer amount must be positive")
	}
	return nil
}

func (a ConfigChange) validate() error {
	if a.VotingPeriod == nil && a.TimelockDelay == nil && a.QuorumThresholdBp == nil && a.ApprovalThresholdBp == nil {
		return errorf(CodeInvalidParameter, "config change sets no field")
	}
	if a.VotingPeriod != nil && *a.VotingPeriod <= 0 {
		return errorf(CodeInvalidParameter, "voting period must be positive")
	}
	if a.TimelockDelay != nil && *a.TimelockDelay < 0 {
		return errorf(CodeInvalidParameter, "timelock delay must not be negative")
	}
	if a.QuorumThresholdBp != nil {
		if err := validateBasisPoints("quorum threshold", *a.QuorumThresholdBp); err != nil {
			return err
		}
	}
	if a.ApprovalThresholdBp != nil {
		if err := validateBasisPoints("approval threshold", *a.ApprovalThresholdBp); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns p with the set fields replaced.
func (a ConfigChange) Apply(p Params) Params {
	if a.VotingPeriod != nil {
		p.VotingPeriod = *a.VotingPeriod
	}
	if a.TimelockDelay != nil {
		p.TimelockDelay = *a.TimelockDelay
	}
	if a.QuorumThresholdBp != nil {
		p.QuorumThresholdBp = *a.QuorumThresholdBp
	}
	if a.ApprovalThresholdBp != nil {
		p.ApprovalThresholdBp = *a.ApprovalThresholdBp
	}
	return p
}

func (a AddMember) validate() error {
	if strings.TrimSpace(a.Member) == "" {
		return errorf(CodeInvalidParameter, "member address is required")
	}
	if a.Power == 0 {
		return errorf(CodeInvalidParameter, "voting power must be positive")
	}
	return nil
}

func (a RemoveMember) validate() error {
	if strings.TrimSpace(a.Member) == "" {
		return errorf(CodeInvalidParameter, "member address is required")
	}
	return nil
}

func (a Custom) validate() error {
	if strings.TrimSpace(a.Target) == "" {
		return errorf(CodeInvalidParameter, "custom target is required")
	}
	return nil
}

// EncodeAction serializes the payload of a; the kind is stored separately.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, errorf(CodeInvalidParameter, "action is required")
	}
	return json.Marshal(a)
}

// DecodeAction rebuilds an action from its kind and encoded payload.
func DecodeAction(kind ActionKind, payload []byte) (Action, error) {
	switch kind {
	case ActionTransfer:
		return decodeAs[Transfer](payload)
	case ActionConfigChange:
		return decodeAs[ConfigChange](payload)
	case ActionAddMember:
		return decodeAs[AddMember](payload)
	case ActionRemoveMember:
		return decodeAs[RemoveMember](payload)
	case ActionCustom:
		return decodeAs[Custom](payload)
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

func decodeAs[T Action](payload []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}

// HashAction returns the hex blake2b-256 digest of the action's kind and payload.
func HashAction(a Action) (string, error) {
	payload, err := EncodeAction(a)
	if err != nil {
		return "", err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(a.Kind()))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
