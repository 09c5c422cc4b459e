package builtin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/contextutil"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

const ToolNameUpdateUserName = "update_user_name"

// AccountTool mutates the customer's profile on the session.
type AccountTool struct {
	tools.BaseToolSet
}

var _ tools.ToolSet = (*AccountTool)(nil)

type UpdateUserNameArgs struct {
	UserName  string `json:"user_name" jsonschema:"The new user name"`
	ImagePath string `json:"image_path,omitempty" jsonschema:"Path of the uploaded government ID image"`
	BirthDate string `json:"birth_date,omitempty" jsonschema:"The customer's birth date"`
}

func NewAccountTool() *AccountTool {
	return &AccountTool{}
}

func (t *AccountTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Function: tools.FunctionDefinition{
				Name:        ToolNameUpdateUserName,
				Description: "Update the customer's user name on their account.",
				Parameters:  tools.MustSchemaFor[UpdateUserNameArgs](),
			},
			Handler: tools.NewHandler(t.updateUserName),
		},
	}, nil
}

func (t *AccountTool) updateUserName(ctx context.Context, args UpdateUserNameArgs) (*tools.ToolCallResult, error) {
	sess := contextutil.GetSession(ctx)
	if sess == nil {
		slog.Error("update_user_name called outside a session")
		return tools.ResultError(chat.ErrorApology), nil
	}
	if sess.Profile.UserID == "" {
		// The account agent's handoff hook assigns the ID; without it
		// the update cannot be attributed to an account.
		return tools.ResultError("No account ID has been assigned for this conversation yet. Transfer the customer back to the triage agent."), nil
	}
	if args.UserName == "" {
		return tools.ResultError("A user name is required."), nil
	}

	sess.Profile.UserName = args.UserName
	if args.ImagePath != "" {
		sess.Profile.ImagePath = args.ImagePath
	}
	if args.BirthDate != "" {
		sess.Profile.BirthDate = args.BirthDate
	}
	slog.Info("Updated user name", "user_id", sess.Profile.UserID)

	return &tools.ToolCallResult{
		Output: fmt.Sprintf("The user name has been updated to %s.", args.UserName),
	}, nil
}
