package utility

import (
	"github.com/brianvoe/gofakeit/v7"
)

// The faker category nests a level deeper than the others, e.g.
// $faker.person.fullName. The registry lookup passes everything after
// the category through as the function name, so these register with
// dotted names.
func registerFakerFuncs(r *Registry) {
	fake := func(name, description string, fn func() interface{}) {
		reg(r, "faker", name, description, func(args []interface{}) (interface{}, error) {
			return fn(), nil
		})
	}

	fake("person.fullName", "Random full name", func() interface{} { return gofakeit.Name() })
	fake("person.firstName", "Random first name", func() interface{} { return gofakeit.FirstName() })
	fake("person.lastName", "Random last name", func() interface{} { return gofakeit.LastName() })
	fake("person.jobTitle", "Random job title", func() interface{} { return gofakeit.JobTitle() })

	fake("internet.email", "Random email address", func() interface{} { return gofakeit.Email() })
	fake("internet.userName", "Random username", func() interface{} { return gofakeit.Username() })
	fake("internet.url", "Random URL", func() interface{} { return gofakeit.URL() })
	fake("internet.ipv4", "Random IPv4 address", func() interface{} { return gofakeit.IPv4Address() })
	fake("internet.userAgent", "Random browser user agent", func() interface{} { return gofakeit.UserAgent() })

	fake("phone.number", "Random phone number", func() interface{} { return gofakeit.Phone() })

	fake("address.street", "Random street address", func() interface{} { return gofakeit.Street() })
	fake("address.city", "Random city", func() interface{} { return gofakeit.City() })
	fake("address.state", "Random state", func() interface{} { return gofakeit.State() })
	fake("address.zipCode", "Random postal code", func() interface{} { return gofakeit.Zip() })
	fake("address.country", "Random country", func() interface{} { return gofakeit.Country() })

	fake("company.name", "Random company name", func() interface{} { return gofakeit.Company() })
	fake("company.buzzword", "Random corporate buzzword", func() interface{} { return gofakeit.BuzzWord() })

	fake("commerce.productName", "Random product name", func() interface{} { return gofakeit.ProductName() })
	fake("commerce.price", "Random price between 1 and 1000", func() interface{} { return gofakeit.Price(1, 1000) })

	fake("finance.creditCardNumber", "Random credit card number", func() interface{} { return gofakeit.CreditCardNumber(nil) })
	fake("finance.currencyCode", "Random ISO currency code", func() interface{} { return gofakeit.CurrencyShort() })

	fake("lorem.word", "Random lorem word", func() interface{} { return gofakeit.Word() })
	fake("lorem.sentence", "Random lorem sentence", func() interface{} { return gofakeit.Sentence(8) })
	fake("lorem.paragraph", "Random lorem paragraph", func() interface{} { return gofakeit.Paragraph(1, 4, 8, " ") })
}
