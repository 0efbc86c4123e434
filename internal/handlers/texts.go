package handlers

import (
	"fmt"
	"strings"

	"github.com/m3rciful/growbot/core/telegram/format"
	"github.com/m3rciful/growbot/internal/ledger"
)

const (
	msgNotRegistered   = "❌ You are not registered! Send /start to register."
	msgTryAgain        = "⚠️ An error occurred. Please try again later."
	msgSessionLost     = "⚠️ Your session has expired or was lost. Please start again from the menu."
	msgWelcomeBack     = "👋 Welcome back! Use the menu below to navigate."
	msgAskUsername     = "📝 Please enter a unique username:"
	msgUsernameTaken   = "❌ This username is already taken. Please enter another one:"
	msgRegistrationCap = "🚫 Registration limit reached! Only %d users can join this bot."
	msgUsernameInvalid = "❌ Username must be 1-%d characters. Please enter another one:"
	msgRegistered      = "🎉 Welcome, %s! Your account has been registered successfully."
	msgMainMenu        = "🏠 *Main Menu:*"
	msgReturningMain   = "🔙 Returning to the main menu..."

	msgHoliday          = "❌ No rewards on the %s of every month. 🚫💰\n\n🔄 Come back tomorrow! ⏳😊"
	msgCheckInInactive  = "Your account is inactive ❎. Purchase a plan to activate your account ☺️"
	msgCheckedInAlready = "✅ You have already checked in today. Come back tomorrow!"
	msgCheckedIn        = "✅ *You have successfully checked in!* 🎉\n\n💰 Your balance has been increased by *+₹%d*. 📈\n\n🔄 *Come back tomorrow to check-in again!* ⏳😊"
	msgCheckInBalance   = "💵 *Your updated balance is now: ₹%d* 🎊🚀\n\n🔹 Keep checking in daily to earn more rewards! 🎁"

	msgDepositMenu  = "💰 *Deposit Menu:* Choose an option below:"
	msgDepositRules = "📜 *Deposit Rules:* \n- Rule 1: Send the payment 💳 screenshot in the google form link.\n- Rule 2: User's sending multiple transaction for the same plan will not get refunded ❌.\n- Rule 3: Once deposit is completed your account will be activated within 24-48hrs. Wait patiently....☺️"
	msgPurchaseMenu = "💳 *Purchase Instructions:* \n\n1️⃣ *Purchase Plan* → For users to purchase a plan.\n2️⃣ *Re-activate Plan* → For users renewing their plan."

	msgPurchaseStart     = "Hello %s 👋,\n🚀 Good luck on your investment journey! 💰📈\n\n💡 Type the plan you want to purchase ⬇️✨\n\nAvailable Plans => *Starter Pack*"
	msgReactivateStart   = "Hello %s 👋,\n🔄 Ready to continue your investment journey? 💰📈\n\n💡 Type the plan you want to re-activate ⬇️✨\n\nAvailable Plans => *Starter Pack Re-Activate*"
	msgPurchaseConfirm   = "💰 You need to deposit ₹%d to continue.\n🔗 Type *Proceed* to get the payment link. ✅"
	msgReactivateConfirm = "💰 You need to deposit ₹%d to re-activate your plan.\n\n🔗 Type *Re-Activate* to get the payment link. ✅"
	msgPurchasePayment   = "💳 *Payment Instructions:*\n\n1️⃣ Click the link below to complete your deposit:\n[Payment Link:]\n%s\n\n2️⃣ After payment, submit your payment proof here:\n[Google Form Link:]\n%s\n\n3️⃣ Your account will be activated within *24-48 hours* after verification. ✅"
	msgReactivatePayment = "💳 *Re-activation Payment Instructions:*\n\n1️⃣ Click the link below to complete your ₹%d payment:\n[Payment Link:]\n%s\n\n2️⃣ After payment, submit your payment proof here:\n[Google Form Link:]\n%s\n\n3️⃣ Your plan will be reactivated within *24-48 hours* after verification. ✅"
	msgNoDeposits        = "❌ No deposit records found."

	msgWithdrawMenu       = "💸 *Withdraw Menu:* Choose an option below:"
	msgWithdrawWindow     = "❌ Withdrawals are allowed only from the %s to %s of each month."
	msgWithdrawDaily      = "❌ You can only withdraw once per day. Try again tomorrow!"
	msgWithdrawMonthly    = "❌ You have reached the limit of %d withdrawals per month."
	msgWithdrawInactive   = "❌ Your account is inactive. Purchase a plan to activate withdrawals!"
	msgWithdrawMinimum    = "❌ Insufficient balance! Minimum required: ₹%d."
	msgWithdrawFixed      = "You are eligible to withdraw ₹%d. Enter your UPI ID 🔢💳."
	msgWithdrawAskAmount  = "Enter the amount to withdraw (₹%d - ₹%d) 🤑."
	msgWithdrawBadAmount  = "❌ Enter a valid amount between ₹%d - ₹%d."
	msgInsufficient       = "❌ Insufficient balance!"
	msgAskUPI             = "Enter your UPI ID 🔢💳."
	msgAskName            = "Enter your name as per UPI ID 📝✨."
	msgWithdrawSuccessful = "🎉 Withdrawal Successful! Your request will be processed within 24-72 hours."
	msgNoWithdrawals      = "❌ No withdrawal history found."

	msgBalance   = "Hey %s! 👋😊💰\n\n✨ *Your Current Balance* ✨\n💵📈 ₹%d"
	msgAffiliate = "👥 Hello %s! \n\n🌟 *Refer & Earn!* 🌟\n\n" +
		"📌 You have referred: *%d* users\n" +
		"💰 Earnings from referrals: *₹%d*\n\n" +
		"📢 Share your referral link and earn rewards:\n🔗 [%s](%s)\n\n" +
		"*💵 Earn ₹%d for each friend who activates their account!* 🎉\n\n" +
		"⚠️ *Minimum ₹%d is required to move to balance. 💰🔻*"
	msgMoveButton    = "🔄 Move to Balance"
	msgMoved         = "✅ ₹%d has been moved to your balance successfully!"
	msgMoveShortfall = "❌ You need at least ₹%d in referral earnings to move to balance!"
	msgMoveFailed    = "❌ An error occurred while moving to balance. Try again later."
	msgProfile       = "👤 *Your Profile* 📌\n\n👤 *Username:* %s\n🆔 *UID:* %d\n📌 *Status:* %s\n📅 *Member since:* %s"
)

func aboutText(r ledger.Rules) string {
	return fmt.Sprintf(`ℹ️ *About TSHM_GROW* ℹ️

📌 *How It Works:*
- Deposit ₹%d and earn ₹%d daily.
- Withdraw your earnings anytime after reaching the requirements.
- Refer friends and earn additional rewards.

💼 *Features:*
✔ Secure transactions
✔ Fast withdrawals
✔ Passive earnings

📌 *Rules:*
- Must read the deposit 💰, withdraw 📤, and affiliate 👥 rules 📜 for any queries.
- Once registered, come every day to check-in ✅ and get your reward 💵.
- If a user doesn't check-in ✅, their reward 💵 will not be ❌ credited.
- Company holiday is on *%s of every month ☺️*.
- No reward will be distributed on company holidays.

📞 *Support:* Contact tshmgrow@gmail.com for queries.

🚀 *Start earning today!*`, r.PlanPrice, r.CheckInReward, ordinal(r.HolidayDay))
}

func plansText(r ledger.Rules) string {
	return fmt.Sprintf("📊 *Plans:*\n\nℹ️ Starter Pack: ℹ️\n💰 Plan Amount: ₹%d\n📆 Validity: Last date of every month.\n💵 Daily Revenue: ₹%d.\n\n"+
		"🔔 Note:\n1️⃣ Must check-in ✅ daily after purchasing the plan.\n"+
		"2️⃣ For better revenue 💹, don't purchase the plan after the 15th of every month. (Follow strictly ❗ otherwise, you will not be able to withdraw. 🚫💸)\n"+
		"3️⃣ Must re-activate 🔄 the plan by depositing ₹%d on the 1st of every month, otherwise no withdrawals will be accepted. 🚫💰\n"+
		"4️⃣ Re-activation period: 🗓️ 1st to 3rd of every month.\n"+
		"5️⃣ If the user don't re-activate the plan ❌, his earnings will be stopped ⏸️. Thus the user will have to re-purchase the entire plan 🛒 to become an active user ✅ again.\n\n"+
		"More plans coming soon.....", r.PlanPrice, r.CheckInReward, r.ReactivationPrice)
}

func withdrawRulesText(r ledger.Rules) string {
	return fmt.Sprintf("📜 *Withdraw Rules:*\n\n"+
		"1️⃣ Withdrawals allowed only from the %s to %s of each month.\n"+
		"2️⃣ Only active users can withdraw funds ✅.\n"+
		"3️⃣ Approval within 24-72 hours ⏳.\n"+
		"4️⃣ Name on withdrawal must match UPI name ⚠️.\n"+
		"5️⃣ 10%% processing fee (subject to change 📉).\n"+
		"6️⃣ First withdrawal fixed at ₹%d.\n"+
		"7️⃣ Future withdrawals: Min ₹%d | Max ₹%d.\n"+
		"8️⃣ Daily Limit: 1 withdrawal per day.\n"+
		"9️⃣ Monthly Limit: %d withdrawals per month.\n"+
		"🔟 Limits may change as the platform grows 🚀.",
		ordinal(r.WindowStartDay), ordinal(r.WindowEndDay),
		r.FirstWithdrawal, r.MinWithdrawal, r.MaxWithdrawal, r.MonthlyWithdrawals)
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// escape makes user supplied text safe inside legacy Markdown.
func escape(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return out
}

// capitalize upper-cases the first letter of an ASCII status word.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
