// Package handlers turns user actions into ledger operations and reply
// directives. It knows nothing about the messaging transport.
package handlers

// Menu is a reply keyboard given as rows of button labels.
type Menu [][]string

// InlineButton is a callback button attached to a message.
type InlineButton struct {
	Text   string
	Unique string
}

// Directive is one outbound message, or a callback answer when Alert is set.
type Directive struct {
	Text           string
	Menu           Menu
	Markdown       bool
	DisablePreview bool
	Alert          bool
	Inline         []InlineButton
}

// Reply keyboard labels. The transport routes these before any dialog text.
const (
	LabelCheckIn         = "✅ Check-in"
	LabelAbout           = "ℹ️ About"
	LabelDeposit         = "💰 Deposit"
	LabelWithdraw        = "📤 Withdraw"
	LabelBalance         = "📊 Balance"
	LabelAffiliate       = "👥 Affiliate"
	LabelProfile         = "📌 Profile"
	LabelDepositRules    = "📜 Rules"
	LabelPlans           = "📊 Plans"
	LabelPurchase        = "💳 Purchase"
	LabelDepositHistory  = "📂 Deposit History"
	LabelBackToMain      = "⬅ Back to Main Menu"
	LabelPurchasePlan    = "🆕 Purchase Plan"
	LabelReactivatePlan  = "🔄 Re-activate Plan"
	LabelBackToDeposit   = "⬅ Back to Deposit"
	LabelWithdrawRules   = "📜 Withdraw Rules"
	LabelPayout          = "💰 Payout"
	LabelWithdrawHistory = "📂 Withdraw History"
)

// CallbackMoveToBalance is the unique id of the affiliate inline button.
const CallbackMoveToBalance = "move_to_balance"

var (
	MainMenu = Menu{
		{LabelCheckIn, LabelAbout},
		{LabelDeposit, LabelWithdraw},
		{LabelBalance, LabelAffiliate},
		{LabelProfile},
	}
	DepositMenu = Menu{
		{LabelDepositRules, LabelPlans},
		{LabelPurchase, LabelDepositHistory},
		{LabelBackToMain},
	}
	PurchaseMenu = Menu{
		{LabelPurchasePlan, LabelReactivatePlan},
		{LabelBackToDeposit},
	}
	WithdrawMenu = Menu{
		{LabelWithdrawRules, LabelPayout},
		{LabelWithdrawHistory},
		{LabelBackToMain},
	}
)

func text(s string) Directive { return Directive{Text: s} }

func markdown(s string) Directive { return Directive{Text: s, Markdown: true} }

func alert(s string) Directive { return Directive{Text: s, Alert: true} }

func (d Directive) withMenu(m Menu) Directive {
	d.Menu = m
	return d
}

func one(d Directive) []Directive { return []Directive{d} }
