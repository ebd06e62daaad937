package vm

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is a decoded instruction. Every cell decodes to exactly one opcode;
// characters outside the instruction set decode to OpNOP.
type Opcode byte

// Literals
const (
	OpNOP   Opcode = iota // space and any unrecognized character
	OpDigit               // 0-9: push literal value
	OpQuote               // " : toggle string mode
)

// Arithmetic and logic
const (
	OpAdd     Opcode = iota + 0x10 // +
	OpSub                          // -
	OpMul                          // *
	OpDiv                          // /
	OpMod                          // %
	OpNot                          // !
	OpGreater                      // `
)

// Control flow
const (
	OpRight      Opcode = iota + 0x20 // >
	OpLeft                            // <
	OpUp                              // ^
	OpDown                            // v
	OpRandom                          // ?
	OpHorizontal                      // _ : pop, right if zero else left
	OpVertical                        // | : pop, down if zero else up
	OpBridge                          // # : skip next cell
	OpEnd                             // @
)

// Stack
const (
	OpDup     Opcode = iota + 0x30 // :
	OpSwap                         // \
	OpDiscard                      // $
)

// Grid access
const (
	OpPut Opcode = iota + 0x40 // p
	OpGet                      // g
)

// I/O
const (
	OpOutInt   Opcode = iota + 0x50 // .
	OpOutASCII                      // ,
	OpInInt                         // &
	OpInASCII                       // ~
)

var decodeTable [128]Opcode

func init() {
	for c := '0'; c <= '9'; c++ {
		decodeTable[c] = OpDigit
	}
	for c, op := range map[byte]Opcode{
		'"':  OpQuote,
		'+':  OpAdd,
		'-':  OpSub,
		'*':  OpMul,
		'/':  OpDiv,
		'%':  OpMod,
		'!':  OpNot,
		'`':  OpGreater,
		'>':  OpRight,
		'<':  OpLeft,
		'^':  OpUp,
		'v':  OpDown,
		'?':  OpRandom,
		'_':  OpHorizontal,
		'|':  OpVertical,
		'#':  OpBridge,
		'@':  OpEnd,
		':':  OpDup,
		'\\': OpSwap,
		'$':  OpDiscard,
		'p':  OpPut,
		'g':  OpGet,
		'.':  OpOutInt,
		',':  OpOutASCII,
		'&':  OpInInt,
		'~':  OpInASCII,
	} {
		decodeTable[c] = op
	}
}

// Decode returns the opcode a cell executes as.
func Decode(c Cell) Opcode {
	ch, ok := c.Instruction()
	if !ok {
		return OpNOP
	}
	return decodeTable[ch]
}

var opcodeNames = map[Opcode]string{
	OpNOP:        "NOP",
	OpDigit:      "DIGIT",
	OpQuote:      "QUOTE",
	OpAdd:        "ADD",
	OpSub:        "SUB",
	OpMul:        "MUL",
	OpDiv:        "DIV",
	OpMod:        "MOD",
	OpNot:        "NOT",
	OpGreater:    "GREATER",
	OpRight:      "RIGHT",
	OpLeft:       "LEFT",
	OpUp:         "UP",
	OpDown:       "DOWN",
	OpRandom:     "RANDOM",
	OpHorizontal: "HIF",
	OpVertical:   "VIF",
	OpBridge:     "BRIDGE",
	OpEnd:        "END",
	OpDup:        "DUP",
	OpSwap:       "SWAP",
	OpDiscard:    "DISCARD",
	OpPut:        "PUT",
	OpGet:        "GET",
	OpOutInt:     "OUTINT",
	OpOutASCII:   "OUTASCII",
	OpInInt:      "ININT",
	OpInASCII:    "INASCII",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
