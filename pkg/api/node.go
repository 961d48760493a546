package api

type (
	// Script is a parsed, statically validated sequence of task nodes
	Script struct {
		Tasks []*Node
	}

	// Node is one entry of a script. A node is either an action invocation
	// or a block holding a nested sequence of nodes. Both variants carry the
	// same control attributes
	Node struct {
		Params   any
		Loop     any
		Name     string
		Action   string
		Register string
		When     []string
		Block    []*Node
		Kind     NodeKind
		Never    bool
	}

	// NodeKind distinguishes action nodes from block nodes
	NodeKind int
)

const (
	ActionNode NodeKind = iota
	BlockNode
)

const (
	KeyName     = "name"
	KeyWhen     = "when"
	KeyLoop     = "loop"
	KeyRegister = "register"
	KeyTasks    = "tasks"

	ActionBlock  = "block"
	ActionFail   = "fail"
	ActionReturn = "return"

	ParamMessage = "msg"
	ParamResult  = "result"

	LoopItem  = "item"
	LoopIndex = "loop_index"
)

var (
	// ControlKeys are the node keys that never select an action
	ControlKeys = [...]string{KeyName, KeyWhen, KeyLoop, KeyRegister}

	// EngineActions are selectors whose semantics belong to the engine
	EngineActions = [...]string{ActionBlock, ActionFail, ActionReturn}
)

// IsControlKey returns whether key is one of the reserved control keys
func IsControlKey(key string) bool {
	for _, k := range ControlKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsEngineAction returns whether name is handled by the engine itself
func IsEngineAction(name string) bool {
	for _, a := range EngineActions {
		if a == name {
			return true
		}
	}
	return false
}

// DisplayName returns the node's name, falling back to its selector
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Action
}

// IsBlock returns whether the node is a block
func (n *Node) IsBlock() bool {
	return n.Kind == BlockNode
}
