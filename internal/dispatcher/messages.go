package dispatcher

const (
	welcomeMessage = "🎂 *Welcome to Cake Fairy!* 🎂\n\n" +
		"We create delicious, beautifully decorated cakes for all occasions.\n" +
		"Fresh cream is the default filling for all our $20 cakes.\n\n" +
		"Please choose an option to continue:"

	invalidSelectionMessage = "Invalid selection. Please choose an option from the list."

	emptyPromptMessage = "Please type a message or select an option from the menu."

	goodbyeNudgeMessage = "If you need anything else later, just say 'menu' to start again."

	anythingElseMessage = "Is there anything else I can help you with?"

	cupcakePromptMessage = "Our cupcakes start at $15 per dozen. Please provide more details about your cupcake needs:\n" +
		"- Quantity\n- Flavors\n- Decorations\n- Any special requests"

	cupcakeThanksMessage = "Thank you for your cupcake inquiry! We've received your details and will contact you shortly with a quote."

	callbackPromptMessage = "Please provide your name and the best time to call you back:"

	callbackThanksMessage = "Thank you for your callback request! We've received your information and will contact you shortly."

	directContactMessage = "📞 *Contact Information* 📞\n\n" +
		"You can reach us at:\n" +
		"• Phone: +263 78 501 9494\n" +
		"• Email: orders@cakefairy1.com\n" +
		"• Website: www.cakefairy1.com\n\n" +
		"Business Hours:\n" +
		"• Monday-Friday: 8:00 AM - 6:00 PM\n" +
		"• Saturday: 9:00 AM - 4:00 PM\n" +
		"• Sunday: Closed"

	existingOrderPromptMessage = "Please provide your order number or phone number associated with your order:"

	orderNotFoundMessage = "Sorry, we couldn't find an order matching that information. " +
		"Please check your order number or phone number and try again, " +
		"or contact us directly for assistance."

	darkColorsNote = "*Note:* Dark colors (red, pink, black) may have a bitter/metallic aftertaste."

	paymentProofPromptMessage = "Please send a photo of your payment confirmation so we can verify it."

	designImagePromptMessage = "Please send a picture of the design you'd like, or a photo for inspiration."

	mediaRetryMessage = "Sorry, we couldn't receive that image. Please try sending it again."

	apologyMessage = "An error occurred. Please try again."

	pricingFreshCream = "💰 *Fresh Cream Cakes Pricing* 💰\n\n" +
		"• Cake Fairy Cake - $20\n• Double Delite - $25\n• Triple Delite - $30\n" +
		"• Small 6\" - $30\n• Large 8\" - $40\n• Large 10\" - $60\n" +
		"• Extra Large 12\" - $80\n• Extra Tall Cake 7\" - $65\n\n" +
		"*2-Tier Cakes:*\n" +
		"• 4 inch + 6 inch - $60\n• 5 inch + 7 inch - $80\n• 6 inch + 8 inch - $110\n" +
		"• 7 inch + 9 inch - $140\n• 8 inch + 10 inch - $170\n\n" +
		"*3-Tier Cakes:*\n" +
		"• 4 inch + 6 inch + 8 inch - $140\n• 5 inch + 7 inch + 9 inch - $170\n" +
		"• 6 inch + 8 inch + 10 inch - $210"

	pricingFruit = "💰 *Fruit Cakes Pricing* 💰\n\n• 6 inch - $40\n• 8 inch - $70"

	pricingPlasticIcing = "💰 *Plastic Icing Cakes Pricing* 💰\n\n" +
		"• Small - $40\n• Medium - $50\n• Large - $70\n• Extra Large - $100"
)
