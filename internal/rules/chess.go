package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Chess implements Engine with corentings/chess. It holds no state.
type Chess struct{}

func New() Chess { return Chess{} }

func (Chess) Initial() Position { return Position(nchess.NewGame().FEN()) }

func (Chess) SideToMove(p Position) (Color, error) {
	game, err := load(p)
	if err != nil {
		return "", err
	}
	return colorFrom(game.Position().Turn()), nil
}

// Apply validates req against p and returns the resulting position with move metadata.
// Refusals are *Rejection values wrapping ErrIllegal; any other error means p itself is unusable.
func (Chess) Apply(p Position, req MoveRequest) (Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return Result{}, err
	}
	game, err := load(p)
	if err != nil {
		return Result{}, err
	}
	if game.Outcome() != nchess.NoOutcome || len(game.ValidMoves()) == 0 {
		return Result{}, reject("game is over")
	}

	pos := game.Position()
	req = fitPromotion(pos, req)
	uci := req.UCI()
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Result{}, reject("illegal move " + uci)
	}
	mv := lastMove(game)
	if mv == nil {
		return Result{}, reject("illegal move " + uci)
	}

	res := Result{
		Position: Position(game.FEN()),
		UCI:      mv.String(),
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, mv),
		Color:    colorFrom(pos.Turn()),
		Captured: capturedKind(pos, mv),
		Check:    mv.HasTag(nchess.Check),
	}
	if o := game.Outcome(); o != nchess.NoOutcome {
		res.Outcome = string(o)
		res.Method = methodName(game.Method())
	}
	return res, nil
}

// Replay applies UCI moves from the initial position.
func Replay(moves []string) (Position, error) {
	game := nchess.NewGame()
	for i, mv := range moves {
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return "", fmt.Errorf("replay ply %d (%s): %w", i+1, mv, err)
		}
	}
	return Position(game.FEN()), nil
}

func load(p Position) (*nchess.Game, error) {
	opt, err := nchess.FEN(string(p))
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	return nchess.NewGame(opt), nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

// fitPromotion drops a promotion piece on moves that are not pawn promotions and
// defaults to a queen when a pawn reaches the last rank without one.
func fitPromotion(pos *nchess.Position, req MoveRequest) MoveRequest {
	piece := pos.Board().Piece(squareOf(req.From))
	promoting := piece.Type() == nchess.Pawn && (req.To[1] == '8' || req.To[1] == '1')
	switch {
	case !promoting:
		req.Promotion = ""
	case req.Promotion == "":
		req.Promotion = "q"
	}
	return req
}

func squareOf(s string) nchess.Square {
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1'))
}

// capturedKind resolves the piece removed by mv, looking behind the target square for en passant.
func capturedKind(pos *nchess.Position, mv *nchess.Move) string {
	if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
		return ""
	}
	sq := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		file, rank := sq.File(), sq.Rank()
		if pos.Turn() == nchess.White {
			sq = nchess.NewSquare(file, rank-1)
		} else {
			sq = nchess.NewSquare(file, rank+1)
		}
	}
	piece := pos.Board().Piece(sq)
	if piece == nchess.NoPiece {
		return ""
	}
	return pieceLetter(piece.Type())
}

func pieceLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Pawn:
		return "p"
	case nchess.Knight:
		return "n"
	case nchess.Bishop:
		return "b"
	case nchess.Rook:
		return "r"
	case nchess.Queen:
		return "q"
	case nchess.King:
		return "k"
	default:
		return ""
	}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	default:
		return ""
	}
}
